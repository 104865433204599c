// Package agronomy scores crops against plot conditions and estimates yields.
//
// # Suitability
//
// Each crop profile gives a {min, max, optimal} band for temperature (°C),
// humidity (%), soil pH and annual rainfall (mm). A reading is scored per
// factor by [FactorScore] and combined with fixed weights:
//
//	temperature 0.30 | humidity 0.30 | pH 0.20 | rainfall 0.20
//
// The composite becomes a 0–100 suitability score and a display confidence of
// min(0.95, composite+0.10).
//
// # Yield
//
// [Estimator] starts from a per-crop base yield (tons/acre) and multiplies in
// penalties for temperature away from 25 °C, humidity outside 40–90 %, pH away
// from 6.5 and rainfall below 500 mm or above 2000 mm. Crops missing from the
// base table use [DefaultBaseYield].
//
// Catalogs and base-yield tables are immutable once built, so a single
// instance can be shared by every request.
package agronomy
