// Package export flattens decoded record messages into tabular sample rows
// and marshals them as parquet or CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/fitscrub/fitproc"
)

// Sample is one flattened record-message row.
type Sample struct {
	RecordIndex  int64    `json:"record_index"`
	TSUTCISO     string   `json:"ts_utc_iso,omitempty"`
	ElapsedS     float64  `json:"elapsed_s"`
	DistanceM    *float64 `json:"distance_m,omitempty"`
	SpeedMPS     *float64 `json:"speed_mps,omitempty"`
	HeartRateBPM *float64 `json:"hr_bpm,omitempty"`
}

// BuildSamples extracts one Sample per record message (global message 20).
// Elapsed time is measured from the first record that carries a timestamp.
func BuildSamples(records []fitproc.Record) []Sample {
	var samples []Sample
	var firstTS *float64

	for idx, record := range records {
		if record.Global != 20 {
			continue
		}
		sample := Sample{RecordIndex: int64(idx)}

		for _, field := range record.Fields {
			switch field.Name {
			case "timestamp":
				if field.Numeric != nil {
					ts := *field.Numeric
					if firstTS == nil {
						firstTS = &ts
					}
					sample.ElapsedS = ts - *firstTS
					sample.TSUTCISO = field.Value
				}
			case "distance":
				sample.DistanceM = field.Numeric
			case "speed", "enhanced_speed":
				if sample.SpeedMPS == nil {
					sample.SpeedMPS = field.Numeric
				}
			case "heart_rate":
				sample.HeartRateBPM = field.Numeric
			}
		}
		samples = append(samples, sample)
	}
	return samples
}

type parquetRow struct {
	RecordIndex  int64   `parquet:"name=record_index, type=INT64"`
	TSUTCISO     string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS     float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	SpeedMPS     float64 `parquet:"name=speed_mps, type=DOUBLE"`
	HeartRateBPM float64 `parquet:"name=hr_bpm, type=DOUBLE"`
}

// MarshalParquet writes samples as a SNAPPY-compressed parquet file in memory.
// Missing values are encoded as NaN.
func MarshalParquet(samples []Sample) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, s := range samples {
		row := parquetRow{
			RecordIndex:  s.RecordIndex,
			TSUTCISO:     s.TSUTCISO,
			ElapsedS:     s.ElapsedS,
			DistanceM:    valueOrNaN(s.DistanceM),
			SpeedMPS:     valueOrNaN(s.SpeedMPS),
			HeartRateBPM: valueOrNaN(s.HeartRateBPM),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// MarshalCSV writes samples as CSV with a header row. Missing values are
// left empty.
func MarshalCSV(samples []Sample) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"record_index", "ts_utc_iso", "elapsed_s", "distance_m", "speed_mps", "hr_bpm"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatInt(s.RecordIndex, 10),
			s.TSUTCISO,
			formatFloat(s.ElapsedS),
			formatOptional(s.DistanceM),
			formatOptional(s.SpeedMPS),
			formatOptional(s.HeartRateBPM),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Marshal picks the marshaller for format ("parquet" or "csv").
func Marshal(samples []Sample, format string) ([]byte, error) {
	switch format {
	case "parquet":
		return MarshalParquet(samples)
	case "csv":
		return MarshalCSV(samples)
	default:
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
