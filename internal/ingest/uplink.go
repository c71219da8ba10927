package ingest

import (
	"strconv"
	"time"
)

// batchColumns is the column layout produced by the streaming sources.
// It matches the header the upstream CSV bridge writes.
var batchColumns = []string{"time", "Battery", "Humidity", "Motion", "Temperature"}

const rowTimeLayout = "2006-01-02 15:04:05"

// uplinkMessage is the TTN application uplink envelope, reduced to the
// fields the LHT65N payload decoder populates: field1 battery volts,
// field3 humidity, field4 motion, field5 temperature.
type uplinkMessage struct {
	ReceivedAt    time.Time `json:"received_at"`
	UplinkMessage struct {
		DecodedPayload struct {
			Field1 *float64 `json:"field1"`
			Field3 *float64 `json:"field3"`
			Field4 *float64 `json:"field4"`
			Field5 *float64 `json:"field5"`
		} `json:"decoded_payload"`
	} `json:"uplink_message"`
}

func (u uplinkMessage) row() []string {
	p := u.UplinkMessage.DecodedPayload
	return []string{
		u.ReceivedAt.UTC().Format(rowTimeLayout),
		fmtCell(p.Field1),
		fmtCell(p.Field3),
		fmtCell(p.Field4),
		fmtCell(p.Field5),
	}
}

// readingMessage is the flat JSON shape used on the Kafka readings topic.
type readingMessage struct {
	Time        time.Time `json:"time"`
	Battery     *float64  `json:"battery"`
	Humidity    *float64  `json:"humidity"`
	Motion      *float64  `json:"motion"`
	Temperature *float64  `json:"temperature"`
}

func (m readingMessage) row() []string {
	return []string{
		m.Time.UTC().Format(rowTimeLayout),
		fmtCell(m.Battery),
		fmtCell(m.Humidity),
		fmtCell(m.Motion),
		fmtCell(m.Temperature),
	}
}

func fmtCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
