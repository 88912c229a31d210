package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-detection-service/internal/config"
	"github.com/couchcryptid/flood-detection-service/internal/domain"
)

func testResult(t *testing.T) domain.Result {
	t.Helper()
	lon, lat, size := -0.4, 39.35, 20.0
	a, err := domain.ParseRequest(domain.AnalysisRequest{
		EventDate:    "2024-10-29",
		DaysBefore:   30,
		DaysAfter:    10,
		Polarization: "VH",
		Orbit:        "DESCENDING",
		AOI:          domain.AOIRequest{Lon: &lon, Lat: &lat, SizeKm: &size},
	})
	require.NoError(t, err)
	return domain.Result{
		ID:           "analysis-1",
		Analysis:     a,
		Mode:         domain.ModeFuzzy,
		AreaHectares: 1234.5,
		TileURL:      "https://tiles.example/{z}/{x}/{y}",
		Calibration:  &domain.Calibration{Lo: 0.1, Hi: 0.3},
		CompletedAt:  time.Date(2024, 11, 9, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	r := testResult(t)

	msg, err := serializeToMessage(r)
	require.NoError(t, err)

	assert.Equal(t, []byte("analysis-1"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_date", msg.Headers[0].Key)
	assert.Equal(t, []byte("2024-10-29"), msg.Headers[0].Value)
	assert.Equal(t, "mode", msg.Headers[1].Key)
	assert.Equal(t, []byte("fuzzy"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-11-09T15:10:00Z"), msg.Headers[2].Value)

	var got domain.Summary
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, r.Summary(), got)
	assert.Equal(t, "type=xyz&url=https://tiles.example/{z}/{x}/{y}&zmin=0&zmax=22", got.LayerURI)
}

func TestSerializeToMessage_ThresholdOmitsCalibration(t *testing.T) {
	r := testResult(t)
	r.Mode = domain.ModeThreshold
	r.Calibration = nil

	msg, err := serializeToMessage(r)
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "calibration")
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"broker:9092"}, KafkaResultTopic: "flood-analyses"}, nil)
	defer w.Close()

	assert.Equal(t, "flood-analyses", w.writer.Topic)
}
