package serverdb

import (
	"fmt"
	"time"
)

// Device is a client device that has synced against this server.
type Device struct {
	DeviceID  string
	FirstSeen time.Time
	LastSeen  time.Time
}

// TouchDevice records that a device was seen now, creating it on first contact.
func (db *ServerDB) TouchDevice(deviceID string) error {
	if deviceID == "" {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.conn.Exec(`
		INSERT INTO devices (device_id, first_seen, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET last_seen = excluded.last_seen`,
		deviceID, now, now)
	if err != nil {
		return fmt.Errorf("touch device %s: %w", deviceID, err)
	}
	return nil
}

// ListDevices returns all known devices, most recently seen first.
func (db *ServerDB) ListDevices() ([]Device, error) {
	rows, err := db.conn.Query(
		`SELECT device_id, first_seen, last_seen FROM devices ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var first, last string
		if err := rows.Scan(&d.DeviceID, &first, &last); err != nil {
			return nil, err
		}
		d.FirstSeen, _ = time.Parse(time.RFC3339Nano, first)
		d.LastSeen, _ = time.Parse(time.RFC3339Nano, last)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
