package dbutils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magiconair/properties"
)

// Source supplies connection configuration in properties format.
type Source interface {
	Open() (io.ReadCloser, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func() (io.ReadCloser, error)

func (f SourceFunc) Open() (io.ReadCloser, error) {
	return f()
}

// FileSource reads configuration from a properties file.
type FileSource string

func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// StringSource serves configuration held in memory.
func StringSource(s string) Source {
	return SourceFunc(func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	})
}

// LoadConfig reads driverClass, url, user and password from src. All four keys
// must be present, values may be empty. The source is closed before returning.
func LoadConfig(src Source) (cfg Config, err error) {
	if src == nil {
		return cfg, &Error{Stage: StageConnect, Code: CodeUnknown, Op: "LoadConfig", Message: "no configuration source"}
	}
	r, err := src.Open()
	if err != nil {
		return cfg, wrapError(err, StageConnect, "LoadConfig")
	}
	defer func() {
		if cerr := Release(r); cerr != nil && err == nil {
			err = wrapError(cerr, StageConnect, "LoadConfig")
		}
	}()

	buf, err := io.ReadAll(r)
	if err != nil {
		return cfg, wrapError(err, StageConnect, "LoadConfig")
	}
	props, err := properties.Load(buf, properties.UTF8)
	if err != nil {
		return cfg, wrapError(err, StageConnect, "LoadConfig")
	}
	return configFromProperties(props)
}

func configFromProperties(props *properties.Properties) (Config, error) {
	values := make(map[string]string, 4)
	var missing []string
	for _, key := range []string{KeyDriverClass, KeyURL, KeyUser, KeyPassword} {
		v, ok := props.Get(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		values[key] = v
	}
	if len(missing) > 0 {
		return Config{}, &Error{
			Stage:   StageConnect,
			Code:    CodeUnknown,
			Op:      "LoadConfig",
			Message: fmt.Sprintf("missing configuration keys: %s", strings.Join(missing, ", ")),
		}
	}

	cfg := DefaultConfig(values[KeyDriverClass], values[KeyURL])
	return cfg.WithCredentials(values[KeyUser], values[KeyPassword]), nil
}
