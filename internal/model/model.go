package model

import (
	"github.com/dmquang/sensorex/internal/model/entities"
	"github.com/dmquang/sensorex/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	Reading        = messages.Reading
	ControlCommand = messages.ControlCommand
	Device         = entities.Device
)

const (
	CommandEnable  = messages.CommandEnable
	CommandDisable = messages.CommandDisable
	TargetAll      = messages.TargetAll
	StatusOnline   = messages.StatusOnline
	StatusOffline  = messages.StatusOffline

	TopicReadings   = messages.TopicReadings
	TopicControl    = messages.TopicControl
	TopicControlAck = messages.TopicControlAck
)
