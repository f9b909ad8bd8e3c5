/*
Vault contract is a custodial ledger of a single NEP-17 asset.

A trusted owner holds a pool of deposited assets on behalf of registered
participants (relays), allocates internal balance between them and lets each
relay withdraw its own balance back to the underlying asset after a
configurable exit timelock.

Depositing via Register credits the common unallocated pool, not the
depositor: the owner decides allocation with Send, which moves internal
balance either out of the pool or between relays. Withdraw starts the
request -> cooling-down -> released state machine: the requested amount is
debited immediately, while the assets leave custody only via
CompleteWithdraw once the timelock recorded at request time has elapsed.
A zero timelock releases within the Withdraw call itself.

The fee percentage parameter and the collected fees counter are reserved
extension points: they are stored and exposed, but no operation charges
fees yet.

# Contract notifications

Sent notification. Produced on every successful owner-mediated transfer.

	Sent:
	  - name: relayTo
	    type: Hash160
	  - name: amount
	    type: Integer

WithdrawRequest notification. Produced when a withdrawal starts cooling
down.

	WithdrawRequest:
	  - name: relay
	    type: Hash160
	  - name: amount
	    type: Integer
	  - name: unlockAt
	    type: Integer

Withdrawn notification. Produced when assets are released out of custody.

	Withdrawn:
	  - name: relay
	    type: Hash160
	  - name: amount
	    type: Integer
*/
package vault
