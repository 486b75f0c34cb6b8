package config

import (
	"errors"
	"os"

	"dario.cat/mergo"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"sigs.k8s.io/yaml"
)

var (
	ErrorMissingConfig = errors.New("missing configuration")
	ErrorInvalidKeys   = errors.New("invalid keys configuration")
	ErrorInvalidStore  = errors.New("invalid store configuration")
)

type cfg struct {
	Server ConfigServer
	Store  ConfigStore
	Keys   ConfigKeys
}

type ConfigServer struct {
	Port    string `json:"port"`
	Mode    string `json:"mode"` // accepted values: plain, tls
	SSLCert string `json:"ssl_cert"`
	SSLKey  string `json:"ssl_key"`
}

type ConfigStore struct {
	Type     string `json:"type"` // accepted values: memory, database
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	CACert   string `json:"ca_cert"`
}

type ConfigKeys struct {
	Issuer              string `json:"issuer"`
	SigningAlgorithm    string `json:"signing_algorithm"`
	EncryptionAlgorithm string `json:"encryption_algorithm"`
	RotationDays        int    `json:"rotation_days"`
	HistorySize         int    `json:"history_size"`
	RotationCheck       string `json:"rotation_check"` // cron spec
	TokenTTL            int    `json:"token_ttl"`      // seconds
}

var Cfg = &cfg{
	Server: ConfigServer{
		Port: "3000",
		Mode: "plain",
	},
	Store: ConfigStore{
		Type:     "memory",
		Driver:   "mysql",
		Host:     "localhost",
		Port:     "3306",
		User:     "root",
		Password: "root",
		Database: "keyserv",
	},
	Keys: ConfigKeys{
		Issuer:              "localhost",
		SigningAlgorithm:    jwa.RS256.String(),
		EncryptionAlgorithm: jwa.RSA_OAEP_256.String(),
		RotationDays:        90,
		HistorySize:         5,
		RotationCheck:       "@every 1h",
		TokenTTL:            3600,
	},
}

func LoadConfig(config_file string) error {
	if _, err := os.Stat(config_file); os.IsNotExist(err) {
		return ErrorMissingConfig
	}

	config_data, err := os.ReadFile(config_file)
	if err != nil {
		return err
	}
	c := &cfg{}
	err = yaml.Unmarshal(config_data, c)
	if err != nil {
		return err
	}

	if err = mergo.Merge(Cfg, c, mergo.WithOverride); err != nil {
		return err
	}

	return nil
}

func (c *cfg) Validate() error {
	if c.Keys.Issuer == "" || c.Keys.RotationDays < 1 {
		return ErrorInvalidKeys
	}

	if c.Store.Type != "memory" && c.Store.Type != "database" {
		return ErrorInvalidStore
	}

	if c.Store.Type == "database" && c.Store.Database == "" {
		return ErrorInvalidStore
	}

	return nil
}
