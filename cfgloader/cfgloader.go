// Package cfgloader provides a simple way to load and validate configuration at the start of an application.
package cfgloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rise-and-shine/svcore/observability/logger"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"
	EnvDev        = "dev"
	EnvLocal      = "local"
	EnvTest       = "test"
)

const envVariable = "ENVIRONMENT"

// MustLoad is like Load but terminates the process when the configuration cannot be loaded.
func MustLoad[T any](opts ...Option) T {
	config, err := Load[T](opts...)
	if err != nil {
		logger.Fatalx(err)
	}
	return config
}

// Load loads and validates configuration from a YAML file based on the ENVIRONMENT variable.
// The files must be named in the format ${ENVIRONMENT}.yaml and located in the config directory
// (./config unless WithConfigDir says otherwise).
//
// The configuration struct should use `yaml` struct tags to map fields to the YAML file structure.
// ${VAR} references in the file are expanded from the process environment, after a .env file
// in the working directory has been loaded when present.
//
// Default values for configuration fields can be set using the `default` struct tag. These values are applied before validation
// if the corresponding fields are not explicitly defined in the YAML file.
//
// Validations are done using the go-playground/validator package.
// See https://pkg.go.dev/github.com/go-playground/validator/v10 for more information.
//
// Example:
//
//	type Config struct {
//	    Host        string `yaml:"host" validate:"required"`  // Maps to the "host" field in the YAML file, required
//	    Port        int    `yaml:"port" default:"8080"`       // Maps to the "port" field in the YAML file, defaults to 8080
//	    LogLevel    string `yaml:"log_level" default:"info"`  // Maps to the "log_level" field, defaults to "info"
//	}
func Load[T any](opts ...Option) (T, error) {
	var config T

	options := Options{ConfigDir: "./config"}
	for _, opt := range opts {
		opt(&options)
	}

	if reflect.ValueOf(&config).Elem().Kind() == reflect.Pointer {
		return config, errx.New("[cfgloader]: type parameter must not be a pointer")
	}

	_ = godotenv.Load()

	env, err := defineEnvironment()
	if err != nil {
		return config, err
	}

	configPath := filepath.Join(options.ConfigDir, env+".yaml")

	data, err := readConfigFile(configPath)
	if err != nil {
		return config, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, errx.Wrap(err, errx.WithDetails(errx.D{"environment": env}))
	}

	if err = defaults.Set(&config); err != nil {
		return config, errx.Wrap(err)
	}

	if err = validateConfig(&config, env); err != nil {
		return config, err
	}

	if !options.Silent {
		printConfig(env, config)
	}

	return config, nil
}

func defineEnvironment() (string, error) {
	choices := []string{EnvProduction, EnvStaging, EnvDev, EnvLocal, EnvTest}
	env := os.Getenv(envVariable)
	if !slices.Contains(choices, env) {
		return "", errx.New(
			"[cfgloader]: ENVIRONMENT env variable is not set or invalid",
			errx.WithDetails(errx.D{"value": env, "choices": strings.Join(choices, ", ")}),
		)
	}
	return env, nil
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errx.New(
			"[cfgloader]: config file not found, make sure that the yaml file exists for each environment",
			errx.WithDetails(errx.D{"path": path}),
		)
	}
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}
	return data, nil
}

func validateConfig(config any, env string) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(config)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return errx.Wrap(err)
	}

	failedFields := make([]string, 0, len(errs))
	for _, fe := range errs {
		tagErr := fe.Tag()
		if fe.Param() != "" {
			tagErr += fmt.Sprintf("=%s", fe.Param())
		}
		failedFields = append(failedFields, fmt.Sprintf("%s: %s", fe.Namespace(), tagErr))
	}

	return errx.New(
		fmt.Sprintf("[cfgloader]: invalid fields in %s config -> %s", env, strings.Join(failedFields, ",  ")),
		errx.WithType(errx.T_Validation),
	)
}
