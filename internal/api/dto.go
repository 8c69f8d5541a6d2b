package api

import (
	"github.com/valetops/tagtrack/internal/tracker"
)

// StayDTO is the wire form of one stay.
type StayDTO struct {
	Seq      int    `json:"seq"`
	Tag      string `json:"tag"`
	TimeIn   string `json:"time_in"`
	TimeOut  string `json:"time_out,omitempty"` // empty while open
	Duration int    `json:"duration"`
	BikeType string `json:"bike_type"`
	Leftover bool   `json:"leftover,omitempty"`
}

func toStayDTO(s tracker.Stay) StayDTO {
	dto := StayDTO{
		Seq:      s.Seq,
		Tag:      s.Tag.String(),
		TimeIn:   s.TimeIn.Format(),
		BikeType: s.BikeType.String(),
		Leftover: s.Leftover,
	}
	if !s.Open() {
		dto.TimeOut = s.TimeOut.Format()
		dto.Duration = s.Duration()
	}
	return dto
}

func toStayDTOs(stays []tracker.Stay) []StayDTO {
	out := make([]StayDTO, 0, len(stays))
	for _, s := range stays {
		out = append(out, toStayDTO(s))
	}
	return out
}

// visitRequest is the body of the mutating visit endpoints.
type visitRequest struct {
	Tag  string `json:"tag"`
	Time string `json:"time"`
	// Field selects in/out for edit, in/out/both for delete.
	Field string `json:"field,omitempty"`
	// Occurrence selects among the tag's stays (0-based); omitted or
	// -1 means the latest.
	Occurrence *int `json:"occurrence,omitempty"`
	Force      bool `json:"force,omitempty"`
	Confirmed  bool `json:"confirmed,omitempty"`
}

// DayDTO is the wire form of the day snapshot.
type DayDTO struct {
	Date      string        `json:"date"`
	TimeOpen  string        `json:"time_open"`
	TimeClose string        `json:"time_closed"`
	Open      []StayDTO     `json:"open"`
	Closed    []StayDTO     `json:"closed"`
	Peaks     tracker.Peaks `json:"peaks"`
}

func toDayDTO(snap tracker.Snapshot) DayDTO {
	return DayDTO{
		Date:      snap.Date,
		TimeOpen:  snap.OpenTime.Format(),
		TimeClose: snap.CloseTime.Format(),
		Open:      toStayDTOs(snap.Open),
		Closed:    toStayDTOs(snap.Closed),
		Peaks:     snap.Peaks,
	}
}
