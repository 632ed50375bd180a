package protocol

// Protocol versions negotiated via websocket subprotocol.
const (
	VersionOCPP16 = "ocpp1.6"
)

// Actions initiated by the charge point.
const (
	ActionBootNotification   = "BootNotification"
	ActionHeartbeat          = "Heartbeat"
	ActionAuthorize          = "Authorize"
	ActionStartTransaction   = "StartTransaction"
	ActionStopTransaction    = "StopTransaction"
	ActionMeterValues        = "MeterValues"
	ActionStatusNotification = "StatusNotification"
	ActionDataTransfer       = "DataTransfer"
)

// Actions initiated by the central system.
const (
	ActionReset           = "Reset"
	ActionUnlockConnector = "UnlockConnector"
)

// Tag authorization outcomes.
const (
	TagAccepted     = "Accepted"
	TagBlocked      = "Blocked"
	TagExpired      = "Expired"
	TagInvalid      = "Invalid"
	TagConcurrentTx = "ConcurrentTx"
)

// Registration status values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationRejected = "Rejected"
)

// Connector status values tracked by the central system.
const (
	ConnectorAvailable = "Available"
	ConnectorOccupied  = "Occupied"
	ConnectorFaulted   = "Faulted"
)

// DataTransfer status values.
const (
	DataTransferAccepted = "Accepted"
	DataTransferRejected = "Rejected"
)

// Measurands extracted from MeterValues sampled values.
const (
	MeasurandEnergyActiveImport = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport  = "Power.Active.Import"
	MeasurandSoC                = "SoC"
)
