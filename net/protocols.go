package net

const (
	ProtocolPrefixMainnet = "/iouledger"
	ProtocolPrefixTestnet = "/iouledger/testnet"

	// ProtocolSessionMainnet carries every flow session. The first frame
	// on a stream names the flow.
	ProtocolSessionMainnet = ProtocolPrefixMainnet + "/session/1.0.0"
	ProtocolSessionTestnet = ProtocolPrefixTestnet + "/session/1.0.0"
)
