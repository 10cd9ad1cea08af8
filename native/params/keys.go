package params

// Canonical parameter store keys. Values are JSON to keep governance payloads
// readable in state dumps.
const (
	KeyAdmin           = "settlement/admin"
	KeyFeeBps          = "settlement/fee-bps"
	KeyTreasury        = "settlement/treasury"
	KeyEscrowTimeout   = "settlement/escrow-timeout"
	KeySupportedAssets = "settlement/supported-assets"
	KeyPauses          = "settlement/pauses"
)
