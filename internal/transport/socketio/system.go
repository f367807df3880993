package socketio

import (
	"os"

	"github.com/edumarques81/serenata/internal/version"
)

// ServerInfo is pushed to every page on connect.
type ServerInfo struct {
	Host      string `json:"host"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildDate string `json:"builddate"`
	// Widget is "page" when the browser plays audio, "mpd" for jukebox
	// output.
	Widget string `json:"widget"`
}

// GetServerInfo returns the info pushed as pushServerInfo.
func GetServerInfo(serverWidget bool) ServerInfo {
	v := version.GetInfo()
	info := ServerInfo{
		Name:      version.Name,
		Version:   v.Version,
		BuildDate: v.BuildTime,
		Widget:    "page",
	}
	if serverWidget {
		info.Widget = "mpd"
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Host = hostname
	}
	return info
}
