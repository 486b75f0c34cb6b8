package utils

import (
	"encoding/json"
	"os"
)

func Getenv(key string, defaultValue string) string {
	val := os.Getenv(key)

	if len(val) == 0 {
		return defaultValue
	}

	return val
}

func DumpJSON[T any](data T) string {
	ret, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return string(ret)
}
