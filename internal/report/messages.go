package report

// Configuration is the JSON credential update accepted on the config
// topic. Empty fields leave the current value unchanged.
type Configuration struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Hostname string `json:"hostname"`
}

// Snapshot is the published view of the manager.
type Snapshot struct {
	State     string `json:"state"`
	Mode      string `json:"mode"`
	Hostname  string `json:"hostname"`
	Connected bool   `json:"connected"`
	IP        string `json:"ip,omitempty"`
	APIP      string `json:"ap_ip,omitempty"`
	DST       bool   `json:"dst"`
	Timestamp uint32 `json:"timestamp"`
	DayHour   uint8  `json:"day_hour"`
	Time      string `json:"time"`
	Date      string `json:"date"`
	WeekDay   string `json:"week_day"`
}

// Datagram wraps a message received from the datagram peer.
type Datagram struct {
	Peer      string `json:"peer"`
	Message   string `json:"message"`
	Timestamp uint32 `json:"timestamp"`
}
