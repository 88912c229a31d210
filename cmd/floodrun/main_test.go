package main

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
)

const valenciaManifest = "../../testdata/valencia/manifest.json"

func TestParseFlags_SquareAOI(t *testing.T) {
	o, err := parseFlags([]string{"-manifest", valenciaManifest, "-event-date", "2024-10-29", "-lon", "-0.4", "-lat", "39.35"}, io.Discard)
	require.NoError(t, err)

	aoi := o.request.AOI
	require.NotNil(t, aoi.Lon)
	require.NotNil(t, aoi.SizeKm)
	assert.Equal(t, -0.4, *aoi.Lon)
	assert.Equal(t, 20.0, *aoi.SizeKm, "size defaults when a centre is given")
	assert.Nil(t, aoi.LonMin)
}

func TestParseFlags_RectangleAOI(t *testing.T) {
	o, err := parseFlags([]string{
		"-manifest", valenciaManifest, "-event-date", "2024-10-29",
		"-lon-min", "-0.5", "-lat-min", "39.3", "-lon-max", "-0.3", "-lat-max", "39.4",
	}, io.Discard)
	require.NoError(t, err)

	aoi := o.request.AOI
	assert.Nil(t, aoi.Lon)
	assert.Nil(t, aoi.SizeKm)
	require.NotNil(t, aoi.LatMax)
	assert.Equal(t, 39.4, *aoi.LatMax)

	a, err := domain.ParseRequest(o.request)
	require.NoError(t, err)
	b := a.AOI.Bound()
	assert.InDelta(t, -0.5, b.Min.Lon(), 1e-12)
	assert.InDelta(t, 39.4, b.Max.Lat(), 1e-12)
}

func TestParseFlags_MixedAOIIsRejected(t *testing.T) {
	o, err := parseFlags([]string{"-manifest", valenciaManifest, "-event-date", "2024-10-29", "-lon", "-0.4", "-lat", "39.35", "-lon-min", "-0.5"}, io.Discard)
	require.NoError(t, err)

	_, err = domain.ParseRequest(o.request)
	assert.ErrorIs(t, err, domain.ErrDegenerateInput)
}

func TestParseFlags_MissingRequired(t *testing.T) {
	_, err := parseFlags([]string{"-event-date", "2024-10-29"}, io.Discard)
	assert.ErrorIs(t, err, errUsage)

	_, err = parseFlags([]string{"-manifest", valenciaManifest}, io.Discard)
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_RectangleOverManifest(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-manifest", valenciaManifest, "-event-date", "2024-10-29",
		"-lon-min", "-0.5", "-lat-min", "39.3", "-lon-max", "-0.3", "-lat-max", "39.4",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var s domain.Summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &s))
	assert.Equal(t, "2024-10-29", s.EventDate)
	assert.Equal(t, domain.ModeFuzzy, s.Mode)
	assert.NotEmpty(t, s.TileURLTemplate)
}

func TestRun_InvalidAOIExitsWithUsage(t *testing.T) {
	code := run([]string{"-manifest", valenciaManifest, "-event-date", "2024-10-29"}, io.Discard, io.Discard)
	assert.Equal(t, 2, code)
}
