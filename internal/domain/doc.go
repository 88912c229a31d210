// Package domain models the inputs and outputs of a flood-extent analysis.
//
// # Inputs
//
// The UI shell collects five parameters and posts them as an
// [AnalysisRequest]:
//
//	event_date    ISO 8601 calendar date, e.g. "2024-10-29"
//	days_before   length of the pre-event radar window, >= 1
//	days_after    length of the post-event radar window, >= 1
//	polarization  "VH" or "VV"
//	orbit         "ASCENDING" or "DESCENDING"
//	aoi           {lon, lat, size_km} or {lon_min, lat_min, lon_max, lat_max}
//
// [ParseRequest] turns the request into an [Analysis] or a
// [DegenerateInputError]; nothing invalid reaches the raster backend.
//
// # Time windows
//
// The before window is [event-days_before, event) and the after window is
// [event, event+days_after). Both are half-open so the event day itself
// belongs only to the after window.
//
// # Areas of interest
//
// An [AOI] is an axis-aligned rectangle in EPSG:4326. The square form is
// centred on the captured point and converts kilometres to degrees with
// 110.574 km per degree of latitude and 111.320·cos(lat) km per degree of
// longitude. Width and height must be strictly positive.
//
// # Errors
//
// Fatal failures are one of [DataAvailabilityError] (no acquisitions in a
// window), [ExternalServiceError] (backend unreachable or malformed) or
// [DegenerateInputError]. Undefined region statistics are not errors; the
// pipeline substitutes documented defaults instead.
package domain
