package models

import "time"

// ChargePoint represents a registered charging device.
type ChargePoint struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Vendor          string     `db:"vendor" json:"vendor"`
	Model           string     `db:"model" json:"model"`
	FirmwareVersion string     `db:"firmware_version" json:"firmwareVersion"`
	Username        string     `db:"username" json:"-"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	LastHeartbeat   *time.Time `db:"last_heartbeat" json:"lastHeartbeat,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// ChargeTag is an RFID identifier authorized to start charging sessions.
// Rows are maintained by the administrative collaborator; the protocol core
// only reads them and debits ChargingTimeMins when a transaction closes.
type ChargeTag struct {
	TagID            string     `db:"tag_id" json:"tagId"`
	ParentTagID      string     `db:"parent_tag_id" json:"parentTagId,omitempty"`
	TagName          string     `db:"tag_name" json:"tagName,omitempty"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	Blocked          bool       `db:"blocked" json:"blocked"`
	CompanyID        int64      `db:"company_id" json:"companyId"`
	ChargingTimeMins int64      `db:"charging_time_mins" json:"chargingTimeMins"`
}

// Transaction is one charging session bounded by StartTransaction/StopTransaction.
type Transaction struct {
	TransactionID int64      `db:"transaction_id" json:"transactionId"`
	ChargePointID string     `db:"charge_point_id" json:"chargePointId"`
	ConnectorID   int        `db:"connector_id" json:"connectorId"`
	StartTagID    string     `db:"start_tag_id" json:"startTagId"`
	StartTime     time.Time  `db:"start_time" json:"startTime"`
	MeterStart    float64    `db:"meter_start" json:"meterStart"`
	StartResult   string     `db:"start_result" json:"startResult"`
	StopTime      *time.Time `db:"stop_time" json:"stopTime,omitempty"`
	StopTagID     string     `db:"stop_tag_id" json:"stopTagId,omitempty"`
	StopReason    string     `db:"stop_reason" json:"stopReason,omitempty"`
	MeterStop     *float64   `db:"meter_stop" json:"meterStop,omitempty"`
	TimeConnect   int64      `db:"time_connect" json:"timeConnect"`
	DebitApplied  bool       `db:"debit_applied" json:"-"`
}

// Open reports whether the transaction has not been stopped yet.
func (t *Transaction) Open() bool {
	return t.StopTime == nil
}

// ConnectorStatus holds the last known state of one connector.
type ConnectorStatus struct {
	ChargePointID  string     `db:"charge_point_id" json:"chargePointId"`
	ConnectorID    int        `db:"connector_id" json:"connectorId"`
	LastStatus     string     `db:"last_status" json:"lastStatus"`
	LastStatusTime *time.Time `db:"last_status_time" json:"lastStatusTime,omitempty"`
	LastMeter      *float64   `db:"last_meter" json:"lastMeter,omitempty"`
	LastMeterTime  *time.Time `db:"last_meter_time" json:"lastMeterTime,omitempty"`
}

// MessageLog is one append-only audit record of a protocol exchange.
type MessageLog struct {
	LogID         int64     `db:"log_id" json:"logId"`
	ChargePointID string    `db:"charge_point_id" json:"chargePointId"`
	ConnectorID   *int      `db:"connector_id" json:"connectorId,omitempty"`
	LogTime       time.Time `db:"log_time" json:"logTime"`
	Message       string    `db:"message" json:"message"`
	Result        string    `db:"result" json:"result"`
	ErrorCode     string    `db:"error_code" json:"errorCode,omitempty"`
}
