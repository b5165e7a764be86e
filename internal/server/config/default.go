package config

// Default configuration values.
const (
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 80
	DefaultSecurePort = 443
	DefaultTitle      = "hostgate"

	// Used when a present document omits a port.
	FallbackPort       = 8080
	FallbackSecurePort = 8443

	DefaultAdminHost = "127.0.0.1"
	DefaultAdminPort = 8090

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultRouteTarget is the built-in page served for localhost.
	DefaultRouteTarget = "routes/welcome"
)

// DefaultFile returns the document written when no configuration exists.
func DefaultFile() *File {
	return &File{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Title:        DefaultTitle,
		PreventCrash: false,
		Routes:       map[string]string{"localhost": DefaultRouteTarget},
		Admin: &AdminFile{
			Host: DefaultAdminHost,
			Port: DefaultAdminPort,
		},
		Security: &SecurityFile{
			Key:    "",
			Cert:   "",
			Port:   DefaultSecurePort,
			Routes: map[string]string{"localhost": DefaultRouteTarget},
		},
		Persistent: []string{},
		Log: &LogFile{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Default returns the validated default configuration.
func Default() *Config {
	cfg, err := Build(DefaultFile())
	if err != nil {
		panic("config: default document invalid: " + err.Error())
	}
	return cfg
}
