package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	Twilio   TwilioConfig
	Match    MatchConfig
	Referral ReferralConfig
}

type AppConfig struct {
	Port string
	Env  string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// MatchConfig holds the scoring weights for provider matching.
// Weights are additive; the defaults sum to 100 with city and state
// being mutually exclusive.
type MatchConfig struct {
	InsurancePoints    int
	SameCityPoints     int
	SameStatePoints    int
	SpecialtyPoints    int
	AvailabilityPoints int
}

type ReferralConfig struct {
	// Max attempts to regenerate a referral number on unique-key conflict
	NumberRetries int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("JWT_REFRESH_EXPIRY"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	numberRetries := viper.GetInt("REFERRAL_NUMBER_RETRIES")
	if numberRetries <= 0 {
		numberRetries = 3
	}

	config := &Config{
		App: AppConfig{
			Port: viper.GetString("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			User:     viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
		},
		Twilio: TwilioConfig{
			AccountSID: viper.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  viper.GetString("TWILIO_AUTH_TOKEN"),
			FromNumber: viper.GetString("TWILIO_PHONE_NUMBER"),
		},
		Match:    loadMatchConfig(),
		Referral: ReferralConfig{NumberRetries: numberRetries},
	}

	return config, nil
}

// loadMatchConfig reads scoring weights, falling back to the defaults
// when a weight is not configured.
func loadMatchConfig() MatchConfig {
	cfg := MatchConfig{
		InsurancePoints:    30,
		SameCityPoints:     30,
		SameStatePoints:    15,
		SpecialtyPoints:    20,
		AvailabilityPoints: 20,
	}
	if v := viper.GetInt("MATCH_INSURANCE_POINTS"); v > 0 {
		cfg.InsurancePoints = v
	}
	if v := viper.GetInt("MATCH_SAME_CITY_POINTS"); v > 0 {
		cfg.SameCityPoints = v
	}
	if v := viper.GetInt("MATCH_SAME_STATE_POINTS"); v > 0 {
		cfg.SameStatePoints = v
	}
	if v := viper.GetInt("MATCH_SPECIALTY_POINTS"); v > 0 {
		cfg.SpecialtyPoints = v
	}
	if v := viper.GetInt("MATCH_AVAILABILITY_POINTS"); v > 0 {
		cfg.AvailabilityPoints = v
	}
	return cfg
}
