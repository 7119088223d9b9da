package model

import "strings"

// ─── Priority ─────────────────────────────────────────────────────────────────

// Priority is the urgency assigned to a report. Values outside the known set
// are kept verbatim so filters stay exact; display falls back to PriorityLow.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists the known priorities from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Known reports whether p is one of the four defined priorities.
func (p Priority) Known() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Badge is the display treatment of an enumerated value.
type Badge struct {
	Label string `json:"label"`
	Class string `json:"class"`
}

var priorityBadges = map[Priority]Badge{
	PriorityCritical: {Label: "Критический", Class: "bg-red-700 text-white animate-pulse ring-2 ring-red-400"},
	PriorityHigh:     {Label: "Высокий", Class: "bg-red-600 text-white"},
	PriorityMedium:   {Label: "Средний", Class: "bg-orange-500 text-white"},
	PriorityLow:      {Label: "Низкий", Class: "bg-green-600 text-white"},
}

// Badge returns the priority badge. Unknown priorities get the low badge.
func (p Priority) Badge() Badge {
	if b, ok := priorityBadges[p]; ok {
		return b
	}
	return priorityBadges[PriorityLow]
}

// ─── Status ───────────────────────────────────────────────────────────────────

// Status is the processing state of a report.
type Status string

const (
	StatusReceived  Status = "received"
	StatusInProcess Status = "in_process"
	StatusDone      Status = "done"
)

// Statuses lists the known statuses in workflow order.
var Statuses = []Status{StatusReceived, StatusInProcess, StatusDone}

// Known reports whether s is one of the three defined statuses.
func (s Status) Known() bool {
	switch s {
	case StatusReceived, StatusInProcess, StatusDone:
		return true
	}
	return false
}

var statusBadges = map[Status]Badge{
	StatusReceived:  {Label: "Получено", Class: "bg-blue-600 text-white"},
	StatusInProcess: {Label: "В работе", Class: "bg-yellow-600 text-white"},
	StatusDone:      {Label: "Выполнено", Class: "bg-green-600 text-white"},
}

// Badge returns the status badge. Unknown statuses get a neutral badge
// labelled with the raw value.
func (s Status) Badge() Badge {
	if b, ok := statusBadges[s]; ok {
		return b
	}
	label := string(s)
	if label == "" {
		label = "—"
	}
	return Badge{Label: label, Class: "bg-gray-500 text-white"}
}

// ParsePriority lower-cases and trims a backend priority value.
func ParsePriority(s string) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(s)))
}

// ParseStatus lower-cases and trims a backend status value.
// The backend accepts upper-case statuses in queries and some deployments
// echo them back that way.
func ParseStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

// ─── Category ─────────────────────────────────────────────────────────────────

// Category describes one of the known report categories.
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Categories is the fixed category table in display order.
var Categories = []Category{
	{Value: "ROAD_DEFECTS", Label: "Дефекты дорог и тротуаров"},
	{Value: "LIGHTING", Label: "Неисправное уличное освещение"},
	{Value: "PLAYGROUNDS", Label: "Детские и спортивные площадки"},
	{Value: "WASTE", Label: "Мусор и отходы"},
	{Value: "ANIMALS", Label: "Бездомные или мертвые животные"},
	{Value: "TREES", Label: "Аварийные деревья"},
	{Value: "OPEN_MANHOLES", Label: "Открытые люки и ливнёвки"},
	{Value: "VANDALISM", Label: "Вандализм и граффити"},
	{Value: "ILLEGAL_TRADE", Label: "Незаконная торговля и реклама"},
	{Value: "SNOW_ICE", Label: "Сосульки, снег и наледь"},
	{Value: "ECOLOGY", Label: "Экологические проблемы"},
	{Value: "PUBLIC_TRANSPORT", Label: "Общественный транспорт"},
	{Value: "BIKE_SCOOTER", Label: "Велодорожки и самокаты"},
	{Value: "PUBLIC_TOILETS", Label: "Общественные туалеты"},
	{Value: "PARKING", Label: "Незаконная парковка"},
	{Value: "OTHER", Label: "Другое"},
}

var categoryLabels = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[c.Value] = c.Label
	}
	return m
}()

// KnownCategory reports whether value is in the category table.
func KnownCategory(value string) bool {
	_, ok := categoryLabels[value]
	return ok
}

// CategoryLabel returns the display label for a category value.
// Unknown categories are labelled with their raw value.
func CategoryLabel(value string) string {
	if l, ok := categoryLabels[value]; ok {
		return l
	}
	return value
}
