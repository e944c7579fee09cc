package globalconfig

import "fmt"

// ConfigNotFoundError is returned when the config source has no global configuration file.
type ConfigNotFoundError struct {
	Location string
}

func (err ConfigNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in %s", FileName, err.Location)
}
