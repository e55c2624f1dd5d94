package configuration

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// envPrefix is the prefix of all environment variable overrides.
const envPrefix = "VAULTDB"

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnvOverrides walks the exported fields of the given configuration
// struct and overrides each with the value of the corresponding environment
// variable, when set. Variable names are built by concatenating the
// uppercased field names along the path, separated by underscores, e.g.
// Database.Pool.MaxOpen -> VAULTDB_DATABASE_POOL_MAXOPEN.
func applyEnvOverrides(config interface{}, prefix string) error {
	return overrideFields(reflect.ValueOf(config).Elem(), prefix)
}

func overrideFields(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			// unexported
			continue
		}

		name := prefix + "_" + strings.ToUpper(sf.Name)
		fv := v.Field(i)

		if fv.Kind() == reflect.Struct {
			if err := overrideFields(fv, name); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}

		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
	}

	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			fv.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Map, reflect.Slice:
		// Compound values are given as inline yaml.
		nv := reflect.New(fv.Type())
		if err := yaml.Unmarshal([]byte(raw), nv.Interface()); err != nil {
			return err
		}
		fv.Set(nv.Elem())
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}

	return nil
}
