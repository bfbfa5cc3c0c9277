package service

import "github.com/kardianos/service"

const (
	ServiceName        = "autobill"
	ServiceDisplayName = "Autobill Back-Office Service"
	ServiceDescription = "Billing back-office HTTP API - collects vendor usage statements and reconciles groupware expenses"
)

// NewServiceConfig builds the OS service registration for the binary.
func NewServiceConfig(exePath string, args []string) *service.Config {
	cfg := &service.Config{
		Name:        ServiceName,
		DisplayName: ServiceDisplayName,
		Description: ServiceDescription,
		Arguments:   args,
	}

	cfg.Option = service.KeyValue{
		"StartType": "automatic",
	}
	return cfg
}
