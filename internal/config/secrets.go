package config

import "strings"

// RedactedConfig returns a copy of cfg with secrets replaced by "***" so the
// active configuration can be logged.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Broker.APIKey)
	redact(&out.Broker.SecretKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.AuthToken)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Redis URLs may embed a password.
	if strings.Contains(out.Redis.Addr, "://") && strings.Contains(out.Redis.Addr, "@") {
		redact(&out.Redis.Addr)
	}

	out.Symbols = cloneStrings(cfg.Symbols)
	out.ExtraClosures = cloneStrings(cfg.ExtraClosures)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
