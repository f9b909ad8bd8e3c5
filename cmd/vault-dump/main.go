package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/relayvault/vault-contract/dump"
)

func main() {
	neoRPCEndpoint := flag.String("rpc", "", "Network address of the Neo RPC server")
	chainLabel := flag.String("label", "", "Label of the blockchain environment (e.g. 'testnet')")
	contractHash := flag.String("contract", "", "LE hex script hash of the vault contract")

	flag.Parse()

	switch {
	case *neoRPCEndpoint == "":
		log.Fatal("missing Neo RPC endpoint")
	case *chainLabel == "":
		log.Fatal("missing blockchain label")
	case *contractHash == "":
		log.Fatal("missing vault contract hash")
	}

	vaultHash, err := util.Uint160DecodeStringLE(*contractHash)
	if err != nil {
		log.Fatal(fmt.Errorf("decode vault contract hash: %w", err))
	}

	const rootDir = "testdata"

	err = os.MkdirAll(rootDir, 0700)
	if err != nil {
		log.Fatal(fmt.Errorf("create root dir: %w", err))
	}

	err = _dump(*neoRPCEndpoint, rootDir, *chainLabel, vaultHash)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Vault contract is successfully dumped to '%s/'\n", rootDir)
}

func _dump(neoBlockchainRPCEndpoint, rootDir, label string, vaultHash util.Uint160) error {
	b, err := newRemoteBlockChain(neoBlockchainRPCEndpoint)
	if err != nil {
		return fmt.Errorf("init remote blockchain: %w", err)
	}

	defer b.close()

	d, err := dump.NewCreator(rootDir, dump.ID{
		Label: label,
		Block: b.currentBlock,
	})
	if err != nil {
		return fmt.Errorf("init local dumper: %w", err)
	}

	defer d.Close()

	vaultContract, err := b.rpc.GetContractStateByHash(vaultHash)
	if err != nil {
		return fmt.Errorf("get vault contract by hash: %w", err)
	}

	err = d.SetContract(*vaultContract)
	if err != nil {
		return fmt.Errorf("dump vault contract state: %w", err)
	}

	var relays int

	err = b.iterateContractStorage(vaultHash, func(key, value []byte) error {
		if len(key) == 1+util.Uint160Size && key[0] == 'a' {
			relays++
			log.Printf("Relay account %s\n", base58.Encode(key[1:]))
		}
		return d.Write(key, value)
	})
	if err != nil {
		return fmt.Errorf("iterate vault contract storage: %w", err)
	}

	err = d.Flush()
	if err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}

	log.Printf("Dumped %d relay accounts\n", relays)

	return nil
}
