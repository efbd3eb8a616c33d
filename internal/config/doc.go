// Package config loads and validates the pipeline and server settings.
//
// Precedence, highest first: NYCSALES_* environment variables, then a
// config.yaml (working directory, configs/, or ../configs/), then built-in
// defaults. Load returns a validated Config or an error naming the first
// bad field.
//
// The package also owns the filesystem layout. Paths resolves every
// directory and well-known file relative to the executable, never the
// working directory, so the binaries behave identically wherever they
// are launched from:
//
//	paths, err := config.GetPaths()
//	workbook := paths.GetInputPath("rollingsales_brooklyn.xlsx")
//	summary := paths.GetSummaryCSVPath(2020)
package config
