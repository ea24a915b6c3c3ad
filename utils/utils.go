package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

func Parse[T any](data io.ReadCloser) (*T, error) {
	var container T
	if err := json.NewDecoder(data).Decode(&container); err != nil {
		return nil, err
	}
	return &container, nil
}

func ParseInt64(vars map[string]string, name string) (int64, error) {
	valueS, ok := vars[name]
	if !ok {
		return 0, fmt.Errorf("missing parameter for %s", name)
	}
	value, err := strconv.ParseInt(valueS, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s as int", valueS)
	}
	return value, nil
}
