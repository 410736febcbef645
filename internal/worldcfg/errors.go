package worldcfg

import (
	"errors"
	"fmt"

	"voxelworlds.ai/internal/yamlsec"
)

// ErrAlreadyInitialized is returned when a one-shot bootstrap step runs twice.
var ErrAlreadyInitialized = errors.New("already initialized")

// MissingKeyError reports a required key absent from a persisted section.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("config key '%s' not present", e.Key)
}

// InvalidEnumError reports an enum-typed key holding an unrecognized value.
type InvalidEnumError struct {
	Field string
	Value string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("%s is invalid %s", e.Value, e.Field)
}

// InvalidValueError reports a key whose value has the wrong type.
type InvalidValueError struct {
	Key   string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("config key '%s' has invalid value %q", e.Key, e.Value)
}

// NotRegularFileError reports a config path that exists but is not a plain file.
type NotRegularFileError struct {
	Path string
}

func (e *NotRegularFileError) Error() string {
	return fmt.Sprintf("path %s is not a regular file", e.Path)
}

// InvalidRuleError reports a rule name the live world does not recognize.
type InvalidRuleError struct {
	Name string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("gamerule %s is invalid gamerule", e.Name)
}

// IsConfigError reports whether err is a validation failure of persisted data
// (as opposed to an I/O failure).
func IsConfigError(err error) bool {
	var (
		mk *MissingKeyError
		ie *InvalidEnumError
		iv *InvalidValueError
		dk *yamlsec.DuplicateKeyError
	)
	return errors.As(err, &mk) || errors.As(err, &ie) || errors.As(err, &iv) || errors.As(err, &dk)
}

// sectionErr maps yamlsec getter failures onto the config error taxonomy.
func sectionErr(err error) error {
	var me *yamlsec.MissingError
	if errors.As(err, &me) {
		return &MissingKeyError{Key: me.Key}
	}
	var te *yamlsec.TypeError
	if errors.As(err, &te) {
		return &InvalidValueError{Key: te.Key, Value: te.Value}
	}
	return err
}

func requireKey(sec *yamlsec.Section, key string) error {
	if !sec.Contains(key) {
		return &MissingKeyError{Key: key}
	}
	return nil
}
