package config

import "errors"

var (
	errInvalidDateRange = errors.New(
		"the end date must not be earlier than the start date",
	)

	errInvalidPeriod = errors.New(
		"please provide a valid time period",
	)

	errInvalidStartDate = errors.New(
		"please provide a valid start date",
	)

	errConfigValidation = errors.New(
		"config validation error",
	)

	errReadConfig = errors.New(
		"reading config file failed",
	)

	errWriteConfig = errors.New(
		"writing default config failed",
	)
)
