/*
Package dump provides I/O operations for collected states of the vault
contract.

Persisting the contract state together with its storage makes it possible to
emulate work with a "live" vault deployed on some network: inspect registered
relays, replay accounting against a new contract version or feed migration
tests. The package works with dumps stored in the file system using
human-readable encoding.
*/
package dump
