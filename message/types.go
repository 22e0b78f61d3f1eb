package message

import (
	"github.com/ruvnet/agentic-robotics-sub000/codec"
)

// Wire type names. Stable: they appear inside encoded frames.
const (
	TypeRobotState = "robot_state"
	TypeTwist      = "twist"
	TypeLaserScan  = "laser_scan"
	TypeLogEntry   = "log_entry"
)

func init() {
	codec.Register(TypeRobotState, func() codec.Payload { return &RobotState{} })
	codec.Register(TypeTwist, func() codec.Payload { return &Twist{} })
	codec.Register(TypeLaserScan, func() codec.Payload { return &LaserScan{} })
	codec.Register(TypeLogEntry, func() codec.Payload { return &LogEntry{} })
}

// RobotState is the canonical pose/velocity sample exchanged on control
// topics at high rates.
type RobotState struct {
	Position  [3]float64 `json:"position"`
	Velocity  [3]float64 `json:"velocity"`
	Timestamp int64      `json:"timestamp"`
}

// TypeName implements codec.Payload
func (s *RobotState) TypeName() string { return TypeRobotState }

// WireSize implements codec.Payload
func (s *RobotState) WireSize() int {
	return 2*codec.SizeFloat64Slice(3) + codec.SizeInt64
}

// MarshalWire implements codec.Payload
func (s *RobotState) MarshalWire(enc *codec.Encoder) error {
	enc.WriteFloat64Slice(s.Position[:])
	enc.WriteFloat64Slice(s.Velocity[:])
	enc.WriteInt64(s.Timestamp)
	return nil
}

// UnmarshalWire implements codec.Payload
func (s *RobotState) UnmarshalWire(dec *codec.Decoder) error {
	pos, err := dec.ReadFloat64Slice()
	if err != nil {
		return err
	}
	vel, err := dec.ReadFloat64Slice()
	if err != nil {
		return err
	}
	ts, err := dec.ReadInt64()
	if err != nil {
		return err
	}
	copy(s.Position[:], pos)
	copy(s.Velocity[:], vel)
	s.Timestamp = ts
	return nil
}

// Twist is a velocity command: linear and angular components.
type Twist struct {
	Linear  [3]float64 `json:"linear"`
	Angular [3]float64 `json:"angular"`
}

// TypeName implements codec.Payload
func (t *Twist) TypeName() string { return TypeTwist }

// WireSize implements codec.Payload
func (t *Twist) WireSize() int { return 2 * codec.SizeFloat64Slice(3) }

// MarshalWire implements codec.Payload
func (t *Twist) MarshalWire(enc *codec.Encoder) error {
	enc.WriteFloat64Slice(t.Linear[:])
	enc.WriteFloat64Slice(t.Angular[:])
	return nil
}

// UnmarshalWire implements codec.Payload
func (t *Twist) UnmarshalWire(dec *codec.Decoder) error {
	lin, err := dec.ReadFloat64Slice()
	if err != nil {
		return err
	}
	ang, err := dec.ReadFloat64Slice()
	if err != nil {
		return err
	}
	copy(t.Linear[:], lin)
	copy(t.Angular[:], ang)
	return nil
}

// LaserScan is a planar range scan. Ranges length varies per sensor, so its
// wire size is data-dependent.
type LaserScan struct {
	AngleMin       float64   `json:"angle_min"`
	AngleMax       float64   `json:"angle_max"`
	AngleIncrement float64   `json:"angle_increment"`
	Ranges         []float64 `json:"ranges"`
	Timestamp      int64     `json:"timestamp"`
}

// TypeName implements codec.Payload
func (l *LaserScan) TypeName() string { return TypeLaserScan }

// WireSize implements codec.Payload
func (l *LaserScan) WireSize() int {
	return 3*codec.SizeFloat64 + codec.SizeFloat64Slice(len(l.Ranges)) + codec.SizeInt64
}

// MarshalWire implements codec.Payload
func (l *LaserScan) MarshalWire(enc *codec.Encoder) error {
	enc.WriteFloat64(l.AngleMin)
	enc.WriteFloat64(l.AngleMax)
	enc.WriteFloat64(l.AngleIncrement)
	enc.WriteFloat64Slice(l.Ranges)
	enc.WriteInt64(l.Timestamp)
	return nil
}

// UnmarshalWire implements codec.Payload
func (l *LaserScan) UnmarshalWire(dec *codec.Decoder) error {
	var err error
	if l.AngleMin, err = dec.ReadFloat64(); err != nil {
		return err
	}
	if l.AngleMax, err = dec.ReadFloat64(); err != nil {
		return err
	}
	if l.AngleIncrement, err = dec.ReadFloat64(); err != nil {
		return err
	}
	if l.Ranges, err = dec.ReadFloat64Slice(); err != nil {
		return err
	}
	if l.Timestamp, err = dec.ReadInt64(); err != nil {
		return err
	}
	return nil
}

// Log levels for LogEntry
const (
	LevelDebug uint8 = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LogEntry is a diagnostic record published on log topics.
type LogEntry struct {
	Level     uint8  `json:"level"`
	Source    string `json:"source"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// TypeName implements codec.Payload
func (e *LogEntry) TypeName() string { return TypeLogEntry }

// WireSize implements codec.Payload
func (e *LogEntry) WireSize() int {
	return codec.SizeUint8 + codec.SizeString(e.Source) + codec.SizeString(e.Text) + codec.SizeInt64
}

// MarshalWire implements codec.Payload
func (e *LogEntry) MarshalWire(enc *codec.Encoder) error {
	enc.WriteUint8(e.Level)
	enc.WriteString(e.Source)
	enc.WriteString(e.Text)
	enc.WriteInt64(e.Timestamp)
	return nil
}

// UnmarshalWire implements codec.Payload
func (e *LogEntry) UnmarshalWire(dec *codec.Decoder) error {
	var err error
	if e.Level, err = dec.ReadUint8(); err != nil {
		return err
	}
	if e.Source, err = dec.ReadString(); err != nil {
		return err
	}
	if e.Text, err = dec.ReadString(); err != nil {
		return err
	}
	if e.Timestamp, err = dec.ReadInt64(); err != nil {
		return err
	}
	return nil
}
