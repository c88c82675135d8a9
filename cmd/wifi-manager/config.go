package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/awilliams/wifi-manager/internal/logging"
	"github.com/awilliams/wifi-manager/internal/report"
	"github.com/awilliams/wifi-manager/internal/wifi"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix          = "WIFIMGR"
	defaultWPASock     = "/var/run/wpa_supplicant/wlan0"
	defaultHostapdSock = "/var/run/hostapd/wlan1"
	defaultAPIface     = "wlan1"
	defaultUDPPort     = 4210
)

// config is the daemon's configuration, read from flags, WIFIMGR_*
// environment variables and an optional YAML file, in that order of
// precedence.
type config struct {
	wifi wifi.Config

	wpaSock     string
	hostapdSock string
	apIface     string
	sockDir     string

	udpLocal string
	udpPeer  string
	udpPort  uint16

	mqtt report.MQTTOpts

	tick           time.Duration
	reportInterval time.Duration
	logLevel       string
	version        bool
}

// newFlagSet declares every option. Flag names are the viper keys.
func newFlagSet(appName string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)

	fs.String("config", "", "YAML configuration file")
	fs.String("mode", wifi.ModeStation.String(), "Radio mode: station, access-point or station+access-point")
	fs.String("ssid", "", "Network to join in station modes")
	fs.String("password", "", "Password of the station network")
	fs.String("hostname", wifi.DefaultHostname, "Hostname announced to the network")
	fs.String("ap.ssid", "", "Network to host in access point modes")
	fs.String("ap.password", "", "Password of the hosted network")
	fs.String("ap.iface", defaultAPIface, "Network interface served by hostapd")
	fs.String("ntp.server", "", "NTP server (default "+`"ntp1.inrim.it"`+")")
	fs.String("wpa.sock", defaultWPASock, "wpa_supplicant control interface socket")
	fs.String("hostapd.sock", defaultHostapdSock, "hostapd control interface socket")
	fs.String("sock.dir", "", "Directory for local control sockets (default temporary directory)")
	fs.String("udp.local", "", "Local address of the datagram channel (default station address)")
	fs.String("udp.peer", "", "Peer address of the datagram channel; empty disables it")
	fs.Uint16("udp.port", defaultUDPPort, "Port of the datagram channel")
	fs.String("mqtt.addr", "", `MQTT broker address, e.g "tcp://mqtt.broker:1883"; empty disables reporting`)
	fs.String("mqtt.id", "", "MQTT client ID (default derived from hostname)")
	fs.String("mqtt.prefix", "wifi-manager", "MQTT topic prefix")
	fs.String("mqtt.username", "", "MQTT username (optional)")
	fs.String("mqtt.password", "", "MQTT password (optional)")
	fs.Duration("tick", 100*time.Millisecond, "Interval between state machine steps")
	fs.Duration("report.interval", 30*time.Second, "Interval between published snapshots")
	fs.Bool("debug", false, "Debug logging")
	fs.String("log.level", logging.InfoLevel, "Log level: debug, info, warn or error")
	fs.Bool("version", false, "Print version and exit")

	return fs
}

// loadConfig parses args against fs and resolves every key through viper.
func loadConfig(fs *pflag.FlagSet, args []string) (config, error) {
	var cfg config

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return cfg, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("unable to read config %q: %w", file, err)
		}
	} else {
		v.AddConfigPath("/etc/wifi-manager")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, err
			}
		}
	}

	cfg.version = v.GetBool("version")
	if cfg.version {
		return cfg, nil
	}

	mode, err := wifi.ParseMode(v.GetString("mode"))
	if err != nil {
		return cfg, err
	}
	cfg.wifi = wifi.Config{
		Mode: mode,
		Station: wifi.Credentials{
			SSID:     v.GetString("ssid"),
			Password: v.GetString("password"),
		},
		AccessPoint: wifi.Credentials{
			SSID:     v.GetString("ap.ssid"),
			Password: v.GetString("ap.password"),
		},
		Hostname:  v.GetString("hostname"),
		NTPServer: v.GetString("ntp.server"),
		Debug:     v.GetBool("debug"),
	}

	cfg.wpaSock = v.GetString("wpa.sock")
	cfg.hostapdSock = v.GetString("hostapd.sock")
	cfg.apIface = v.GetString("ap.iface")
	cfg.sockDir = v.GetString("sock.dir")

	cfg.udpLocal = v.GetString("udp.local")
	cfg.udpPeer = v.GetString("udp.peer")
	cfg.udpPort = v.GetUint16("udp.port")

	cfg.mqtt = report.MQTTOpts{
		BrokerAddr:  v.GetString("mqtt.addr"),
		ClientID:    v.GetString("mqtt.id"),
		Username:    v.GetString("mqtt.username"),
		Password:    v.GetString("mqtt.password"),
		Name:        cfg.wifi.Hostname,
		TopicPrefix: v.GetString("mqtt.prefix"),
	}

	cfg.tick = v.GetDuration("tick")
	cfg.reportInterval = v.GetDuration("report.interval")
	cfg.logLevel = v.GetString("log.level")
	if cfg.wifi.Debug {
		cfg.logLevel = logging.DebugLevel
	}

	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.wifi.Mode != wifi.ModeAccessPoint && c.wpaSock == "" {
		return errors.New("wpa.sock cannot be blank in station modes")
	}
	if c.wifi.Mode != wifi.ModeStation && c.hostapdSock == "" {
		return errors.New("hostapd.sock cannot be blank in access point modes")
	}
	if c.wifi.Hostname == "" {
		return errors.New("hostname cannot be blank")
	}
	if c.tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.tick)
	}
	if c.reportInterval <= 0 {
		return fmt.Errorf("report.interval must be positive, got %v", c.reportInterval)
	}
	if c.udpPeer != "" && c.udpPort == 0 {
		return errors.New("udp.port cannot be 0")
	}
	return nil
}

// usage prints the flag defaults followed by helpTxt.
func usage(fs *pflag.FlagSet, appName string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", appName)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, helpTxt, envPrefix)
	}
}

const helpTxt = `
About:
wifi-manager keeps a device connected to a WiFi network, as a station, an
access point or both, and keeps a local clock running from NTP time with
Central European daylight saving applied.

wpa_supplicant/hostapd:
The station role is driven through the wpa_supplicant control interface
(--wpa.sock), the access point role through the hostapd control interface
(--hostapd.sock). Both daemons must run with 'ctrl_interface' enabled.

Environment:
Every option can be set with an environment variable named after it, with
the %s_ prefix, upper case, and '.' replaced by '_', e.g. WIFIMGR_AP_SSID.

MQTT:
When --mqtt.addr is set, the snapshot, received datagrams and the
online/offline status are published under $mqtt.prefix/$hostname/.
Credentials can be changed by publishing JSON to $mqtt.prefix/$hostname/config:

  {"ssid": "home", "password": "secret99", "hostname": "esp-kitchen"}
`
