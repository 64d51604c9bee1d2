package domain

// Line is one line or section of a production site.
type Line struct {
	Key  string `json:"key" koanf:"key"`
	Name string `json:"name" koanf:"name"`
}

// Site is a production site with its lines in display order.
type Site struct {
	Key   string `json:"key" koanf:"key"`
	Name  string `json:"name" koanf:"name"`
	Emoji string `json:"emoji,omitempty" koanf:"emoji"`
	Lines []Line `json:"lines" koanf:"lines"`
}

// Reason is a known downtime reason code.
type Reason struct {
	Key  string `json:"key" koanf:"key"`
	Name string `json:"name" koanf:"name"`
}

// Topology is the static plant layout reports are generated against.
// Order is significant: reports list sites and lines as declared here.
type Topology struct {
	Sites   []Site   `json:"sites" koanf:"sites"`
	Reasons []Reason `json:"reasons" koanf:"reasons"`
}

// SiteByName finds a site by its display name. Matching is exact; callers
// that need fuzzy matching against external data fold the name first.
func (t Topology) SiteByName(name string) (Site, bool) {
	for _, s := range t.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return Site{}, false
}

// LineByName finds a line of the site by display name.
func (s Site) LineByName(name string) (Line, bool) {
	for _, l := range s.Lines {
		if l.Name == name {
			return l, true
		}
	}
	return Line{}, false
}

// ReasonByName finds a reason by display name.
func (t Topology) ReasonByName(name string) (Reason, bool) {
	for _, r := range t.Reasons {
		if r.Name == name {
			return r, true
		}
	}
	return Reason{}, false
}

// DefaultTopology returns the plant layout the service ships with. A
// different layout can be supplied via the topology section of the config
// file.
func DefaultTopology() Topology {
	return Topology{
		Sites: []Site{
			{Key: "omet", Name: "ОМЕТ", Emoji: "🔵", Lines: []Line{
				{Key: "omet1", Name: "ОМЕТ1"}, {Key: "omet2", Name: "ОМЕТ2"},
				{Key: "omet3", Name: "ОМЕТ3"}, {Key: "omet4", Name: "ОМЕТ4"},
				{Key: "omet5", Name: "ОМЕТ5"}, {Key: "sdf", Name: "СДФ"},
			}},
			{Key: "gambini2", Name: "Гамбини-2", Emoji: "🟡", Lines: []Line{
				{Key: "raskat", Name: "Раскат"}, {Key: "tisnenie", Name: "Тиснение"},
				{Key: "namotchik", Name: "Намотчик"}, {Key: "bunker", Name: "Бункер"},
				{Key: "rezka", Name: "Резка"}, {Key: "gilza", Name: "Гильза"},
				{Key: "uno", Name: "Уно"}, {Key: "fbs", Name: "ФБС"},
				{Key: "printer", Name: "Принтер"},
			}},
			{Key: "gambini3", Name: "Гамбини-3", Emoji: "🟢", Lines: []Line{
				{Key: "raskat", Name: "Раскат"}, {Key: "tisnenie", Name: "Тиснение"},
				{Key: "namotchik", Name: "Намотчик"}, {Key: "ambalazh", Name: "Амбалаж"},
				{Key: "bunker", Name: "Бункер"}, {Key: "rezka", Name: "Резка"},
				{Key: "gilza", Name: "Гильза"}, {Key: "uno", Name: "Уно"},
				{Key: "fbs", Name: "ФБС"}, {Key: "infinity", Name: "Инфинити"},
				{Key: "printer", Name: "Принтер"},
			}},
			{Key: "mts2", Name: "МТС-2", Emoji: "🔴", Lines: []Line{
				{Key: "raskat", Name: "Раскат"}, {Key: "tisnenie", Name: "Тиснение"},
				{Key: "folder", Name: "Фолдер"}, {Key: "ambalazh", Name: "Амбалаж"},
				{Key: "rezka", Name: "Резка"}, {Key: "tekna", Name: "Текна"},
				{Key: "keyspaker", Name: "Кейспакер"}, {Key: "printer", Name: "Принтер"},
			}},
			{Key: "mts4", Name: "МТС-4", Emoji: "⚫️", Lines: []Line{
				{Key: "raskat", Name: "Раскат"}, {Key: "tisnenie", Name: "Тиснение"},
				{Key: "folder", Name: "Фолдер"}, {Key: "ambalazh", Name: "Амбалаж"},
				{Key: "rezka", Name: "Резка"}, {Key: "keyspaker", Name: "Кейспакер"},
				{Key: "printer", Name: "Принтер"},
			}},
		},
		Reasons: []Reason{
			{Key: "perevod", Name: "Перевод"}, {Key: "mehanika", Name: "Механика"},
			{Key: "kip", Name: "КИП"}, {Key: "obryv", Name: "Обрыв"},
			{Key: "net_osnovy", Name: "Нет основы"}, {Key: "net_operatora", Name: "Нет оператора"},
			{Key: "obed", Name: "Обед"}, {Key: "zamena", Name: "Замена"},
			{Key: "net_plana", Name: "Нет плана"}, {Key: "phd", Name: "ПХД"},
			{Key: "net_vozduha", Name: "Нет воздуха"},
		},
	}
}
