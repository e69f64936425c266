package util

import (
	"encoding/json"
	"github.com/pkg/errors"
)

// JsonString serialize v, map keys come out sorted so equal values give equal strings
func JsonString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "marshal %T to json", v)
	}
	return string(b), nil
}

// ParseJson parse a json string into v
func ParseJson(jsonStr string, v interface{}) error {
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return errors.Wrapf(err, "unmarshal json into %T", v)
	}
	return nil
}
