// Package relief and its sub-packages implement the backend of a disaster relief donation platform: fundraising
// campaigns, donations sent through an Ethereum-compatible network and a live view of every campaign's progress.
/*
relief provides you with two microservices and an operator command line:

1) a portal microservice (package portal) that implements a RESTful API to list and create campaigns, connect a
 wallet to the donation network and donate, plus a websocket feed pushing the campaign list every time it changes.

2) a watcher microservice (package watcher) that follows the transactions of submitted donations until they settle
 and records their outcome.

3) reliefctl (cmd/reliefctl) to seed, list and create campaigns, credit donations and read the contract total.

Architecture

The campaign ledger (package ledger) owns the campaigns. A donation is credited to its campaign as soon as the network
accepted its transaction: the amount is converted to the display currency and the campaign raised amount, percentage
and status are updated in a single atomic step of the database. Every change of the campaigns reaches the ledger
subscribers as a list sorted newest first, where campaigns sharing a title are shown once.

The portal and the watcher communicate via a message broker (package lib/msg): the portal publishes the donations it
submitted, the watcher publishes them again once settled. AMQP, Redis streams, Kafka and an in-process broker are
supported and chosen in the JSON config file.

The database layer (package lib/store) is product agnostic: MongoDB, PostgreSQL and an in-memory store are supported.
Both services should share the same database.

The blockchain layer (package lib/block) talks to the donation contract: it submits donations, reads the contract
total and reports transaction receipts. Reads that fail are reported as zero and counted, never returned as errors.

The wallet adapter (package lib/wallet) connects a wallet provider to the donation network, adding the network to the
wallet when needed. The portal uses an HD wallet as provider and signer for its accounts.

The microservices can be monitored via a Prometheus API by setting the flag "-m" at startup.
*/
package relief
