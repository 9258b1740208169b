package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GetEnv looks up a key under its name in env or name+_FILE to read the value
// from a file. fallback will be defaulted to if a value is not found.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	} else if value, ok := os.LookupEnv(key + "_FILE"); ok {
		dat, err := os.ReadFile(filepath.Clean(value))
		if err == nil {
			return strings.TrimSpace(string(dat))
		}
	}
	return fallback
}

// GetEnvInt looks up a key under its name in env or name+_FILE to read the
// value from a file. fallback will be defaulted to if a value is not found.
func GetEnvInt(key string, fallback int) int {
	value := GetEnv(key, "")
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"string": value, "environment_key": key}).Fatal("Failed to convert string to int")
	}
	return i
}

// GetEnvBool looks up a key in env, fallback will be defaulted to if a value
// is not found or does not parse.
func GetEnvBool(key string, fallback bool) bool {
	value := GetEnv(key, "")
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"string": value, "environment_key": key}).Fatal("Failed to convert string to bool")
	}
	return b
}

// GetEnvDuration looks up a key under its name in env or name+_FILE to read
// the value from a file. fallback will be defaulted to if a value is not
// found. if an integer is provided, the value will be returned in seconds
// (value * time.Second)
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	tmp := GetEnv(key, "")
	if tmp == "" {
		return fallback
	}
	res, err := time.ParseDuration(tmp)
	if err != nil {
		s, perr := strconv.Atoi(tmp)
		if perr != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"duration_string": tmp, "environment_key": key}).Fatal("Failed to parse duration from env")
		}
		res = time.Duration(s) * time.Second
	}
	return res
}
