package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	PublicBaseURL string

	DBUser string
	DBPass string
	DBHost string
	DBName string

	Redis RedisConfig

	DistanceUnit string
	WeightUnit   string
	LabelFormat  string

	ShipperDefaults ShipperDefaults

	EasyPost EasyPostConfig
	Shippo   ShippoConfig
	Karrio   KarrioConfig
}

type RedisConfig struct {
	Addr                  string
	Password              string
	DB                    int
	RateSessionTTLMinutes int
}

// ShipperDefaults fill gaps in request origins; request-supplied fields
// always win.
type ShipperDefaults struct {
	Name    string
	Company string
	Street1 string
	Street2 string
	City    string
	State   string
	Zip     string
	Country string
	Phone   string
	Email   string
}

type EasyPostConfig struct {
	APIKey string
	Mode   string
	// BaseURL overrides the versioned API host, for migrations without a
	// code change.
	BaseURL string
	// EndShipper is "auto", "always" or "never".
	EndShipper string
}

type ShippoConfig struct {
	APIToken        string
	BaseURL         string
	DefaultCurrency string
	Incoterm        string
	DDPRestricted   []string
}

type KarrioConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
}

// Environment variable names that were renamed; the old name still works but
// logs a deprecation warning once at load time.
var legacyEnvAliases = map[string]string{
	"EASYPOST_KEY":      "EASYPOST_API_KEY",
	"SHIPPO_KEY":        "SHIPPO_API_TOKEN",
	"DEFAULT_INCOTERM":  "SHIPPO_INCOTERM",
	"SHIPPER_POSTCODE":  "SHIPPER_ZIP",
	"LABEL_FILE_FORMAT": "LABEL_FORMAT",
}

func LoadConfig() Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	_ = v.ReadInConfig()

	for _, warning := range resolveLegacyEnv() {
		log.Println("⚠️", warning)
	}

	return Config{
		Port:          v.GetString("server.port"),
		PublicBaseURL: v.GetString("server.public_base_url"),

		DBUser: v.GetString("database.user"),
		DBPass: v.GetString("database.pass"),
		DBHost: v.GetString("database.host"),
		DBName: v.GetString("database.name"),

		Redis: RedisConfig{
			Addr:                  v.GetString("redis.addr"),
			Password:              v.GetString("redis.password"),
			DB:                    v.GetInt("redis.db"),
			RateSessionTTLMinutes: v.GetInt("redis.rate_session_ttl_minutes"),
		},

		DistanceUnit: v.GetString("units.distance"),
		WeightUnit:   v.GetString("units.weight"),
		LabelFormat:  v.GetString("label.format"),

		ShipperDefaults: ShipperDefaults{
			Name:    v.GetString("shipper.name"),
			Company: v.GetString("shipper.company"),
			Street1: v.GetString("shipper.street1"),
			Street2: v.GetString("shipper.street2"),
			City:    v.GetString("shipper.city"),
			State:   v.GetString("shipper.state"),
			Zip:     v.GetString("shipper.zip"),
			Country: v.GetString("shipper.country"),
			Phone:   v.GetString("shipper.phone"),
			Email:   v.GetString("shipper.email"),
		},

		EasyPost: EasyPostConfig{
			APIKey:     v.GetString("easypost.api_key"),
			Mode:       v.GetString("easypost.mode"),
			BaseURL:    v.GetString("easypost.base_url"),
			EndShipper: v.GetString("easypost.end_shipper"),
		},
		Shippo: ShippoConfig{
			APIToken:        v.GetString("shippo.api_token"),
			BaseURL:         v.GetString("shippo.base_url"),
			DefaultCurrency: v.GetString("shippo.default_currency"),
			Incoterm:        v.GetString("shippo.incoterm"),
			DDPRestricted:   v.GetStringSlice("shippo.ddp_restricted"),
		},
		Karrio: KarrioConfig{
			ClientID:     v.GetString("karrio.client_id"),
			ClientSecret: v.GetString("karrio.client_secret"),
			TokenURL:     v.GetString("karrio.token_url"),
			BaseURL:      v.GetString("karrio.base_url"),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBName,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "50050")
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("redis.rate_session_ttl_minutes", 30)
	v.SetDefault("units.distance", "in")
	v.SetDefault("units.weight", "lb")
	v.SetDefault("label.format", "PDF")
	v.SetDefault("easypost.mode", "test")
	v.SetDefault("easypost.base_url", "https://api.easypost.com/v2")
	v.SetDefault("easypost.end_shipper", "auto")
	v.SetDefault("shippo.base_url", "https://api.goshippo.com")
	v.SetDefault("shippo.default_currency", "USD")
	v.SetDefault("shippo.incoterm", "DDU")
	v.SetDefault("karrio.base_url", "http://localhost:5002")
	v.SetDefault("karrio.token_url", "http://localhost:5002/oauth/token")
}

// resolveLegacyEnv copies deprecated variable values to their replacements
// when only the old name is set, and returns one warning per alias used. It
// reads the environment snapshot once; nothing here is stateful.
func resolveLegacyEnv() []string {
	var warnings []string
	for oldName, newName := range legacyEnvAliases {
		oldValue := strings.TrimSpace(os.Getenv(oldName))
		if oldValue == "" {
			continue
		}
		if strings.TrimSpace(os.Getenv(newName)) == "" {
			os.Setenv(newName, oldValue)
		}
		warnings = append(warnings, fmt.Sprintf("%s is deprecated, use %s", oldName, newName))
	}
	return warnings
}
