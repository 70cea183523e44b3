package fitproc

import (
	"fmt"
	"strings"
	"time"

	"github.com/tormoder/fit"
)

// fieldSemantic is one entry of the static field catalog: the human name,
// display units, and fixed-point scale/offset for a (global message, field
// number) pair. A zero scale means the raw value is used as-is.
type fieldSemantic struct {
	name      string
	units     string
	scale     float64
	offset    float64
	timestamp bool
	display   func(v float64) string
}

var fitEpoch = time.Date(1989, 12, 31, 0, 0, 0, 0, time.UTC)

var semanticsByMessage = map[uint16]map[uint8]fieldSemantic{
	0: { // file_id
		0: {name: "type"},
		1: {name: "manufacturer"},
		2: {name: "product"},
		3: {name: "serial_number"},
		4: {name: "time_created", units: "s_since_fit_epoch", timestamp: true},
		5: {name: "number"},
		8: {name: "product_name"},
	},
	12: { // sport
		0: {name: "sport", display: sportName},
		1: {name: "sub_sport"},
		3: {name: "name"},
	},
	18: { // session
		253: {name: "timestamp", units: "s_since_fit_epoch", timestamp: true},
		2:   {name: "start_time", units: "s_since_fit_epoch", timestamp: true},
		5:   {name: "sport", display: sportName},
		6:   {name: "sub_sport"},
		7:   {name: "total_elapsed_time", units: "s", scale: 1000},
		8:   {name: "total_timer_time", units: "s", scale: 1000},
		9:   {name: "total_distance", units: "m", scale: 100},
		14:  {name: "avg_speed", units: "m/s", scale: 1000},
		15:  {name: "max_speed", units: "m/s", scale: 1000},
		16:  {name: "avg_heart_rate", units: "bpm"},
		17:  {name: "max_heart_rate", units: "bpm"},
		18:  {name: "avg_cadence", units: "rpm"},
		19:  {name: "max_cadence", units: "rpm"},
		24:  {name: "total_calories", units: "kcal"},
	},
	19: { // lap
		253: {name: "timestamp", units: "s_since_fit_epoch", timestamp: true},
		2:   {name: "start_time", units: "s_since_fit_epoch", timestamp: true},
		7:   {name: "total_elapsed_time", units: "s", scale: 1000},
		8:   {name: "total_timer_time", units: "s", scale: 1000},
		9:   {name: "total_distance", units: "m", scale: 100},
		13:  {name: "avg_speed", units: "m/s", scale: 1000},
		14:  {name: "max_speed", units: "m/s", scale: 1000},
		15:  {name: "avg_heart_rate", units: "bpm"},
		16:  {name: "max_heart_rate", units: "bpm"},
	},
	20: { // record
		253: {name: "timestamp", units: "s_since_fit_epoch", timestamp: true},
		2:   {name: "altitude", units: "m", scale: 5, offset: 500},
		3:   {name: "heart_rate", units: "bpm"},
		4:   {name: "cadence", units: "rpm"},
		5:   {name: "distance", units: "m", scale: 100},
		6:   {name: "speed", units: "m/s", scale: 1000},
		7:   {name: "power", units: "w"},
		13:  {name: "temperature", units: "c"},
		73:  {name: "enhanced_speed", units: "m/s", scale: 1000},
	},
	21: { // event
		253: {name: "timestamp", units: "s_since_fit_epoch", timestamp: true},
		0:   {name: "event"},
		1:   {name: "event_type"},
		3:   {name: "data"},
		4:   {name: "event_group"},
	},
	26: { // workout
		4: {name: "wkt_name"},
		5: {name: "sport", display: sportName},
		6: {name: "sub_sport"},
		7: {name: "num_valid_steps"},
	},
	27: { // workout_step
		254: {name: "message_index"},
		0:   {name: "wkt_step_name"},
		1:   {name: "duration_type"},
		2:   {name: "duration_value"},
		3:   {name: "target_type"},
		4:   {name: "target_value"},
		7:   {name: "intensity"},
	},
	206: { // field_description
		0: {name: "developer_data_index"},
		1: {name: "field_definition_number"},
		2: {name: "fit_base_type_id"},
		3: {name: "field_name"},
		8: {name: "units"},
	},
	207: { // developer_data_id
		0: {name: "developer_id"},
		1: {name: "application_id"},
		3: {name: "developer_data_index"},
		4: {name: "application_version"},
	},
}

func semanticForField(global uint16, field uint8) fieldSemantic {
	if m, ok := semanticsByMessage[global]; ok {
		if s, ok := m[field]; ok {
			return s
		}
	}
	return fieldSemantic{name: fmt.Sprintf("field_%d", field)}
}

// apply converts a raw decoded value into the catalog's scaled value.
func (s fieldSemantic) apply(raw float64) float64 {
	if s.scale > 0 {
		return raw/s.scale - s.offset
	}
	return raw
}

func (s fieldSemantic) render(scaled float64) string {
	if s.timestamp {
		return fitTimestampToUTC(uint32(scaled)).Format(time.RFC3339)
	}
	if s.display != nil {
		return s.display(scaled)
	}
	out := trimFloat(scaled)
	if s.units != "" {
		out += " " + s.units
	}
	return out
}

func sportName(v float64) string {
	return fmt.Sprint(fit.Sport(uint8(v)))
}

func globalMessageName(global uint16) string {
	name := fmt.Sprint(fit.MesgNum(global))
	if strings.HasPrefix(name, "MesgNum(") {
		return fmt.Sprintf("global_%d", global)
	}
	return name
}

func fitTimestampToUTC(ts uint32) time.Time {
	return fitEpoch.Add(time.Duration(ts) * time.Second)
}
