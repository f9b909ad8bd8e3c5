package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
)

// IterateDumps iterates over all contract dumps collected by the Creator model
// in the specified directory, and passes ID and Reader of each dump into f.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	var id ID
	var r Reader
	var streams dumpStreams

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", d.Name(), err)
		}

		if !strings.HasSuffix(name, stateFileSuffix) {
			return nil
		}

		err = initDumpStreams(&streams, dir, id, true)
		if err != nil {
			return fmt.Errorf("init dump streams ('%s'): %w", name, err)
		}

		err = r.fromDumpStreams(streams.contract, streams.storageItems)
		if err != nil {
			return fmt.Errorf("init dump reader ('%s'): %w", name, err)
		}

		streams.close()

		f(id, &r)

		return nil
	})
}

type kv struct{ k, v []byte }

// Reader reads the contract state and storage collected in the superior dump.
type Reader struct {
	state   state.Contract
	storage []kv
}

func (x *Reader) fromDumpStreams(rContract, rStorageItems io.Reader) error {
	err := json.NewDecoder(rContract).Decode(&x.state)
	if err != nil {
		return fmt.Errorf("decode contract state from JSON: %w", err)
	}

	var rec []string
	var _kv kv

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 2
	_csv.ReuseRecord = true

	x.storage = x.storage[:0]

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		_kv.k, err = _encoding.DecodeString(rec[0])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		_kv.v, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.storage = append(x.storage, _kv)
	}
}

// ContractState returns the state of the dumped contract.
func (x *Reader) ContractState() state.Contract {
	return x.state
}

// IterateStorage iterates over all storage items from the superior dump and
// passes them into f.
func (x *Reader) IterateStorage(f func(key, value []byte)) error {
	for i := range x.storage {
		f(x.storage[i].k, x.storage[i].v)
	}
	return nil
}
