package rules

type Settings map[string]interface{}

func (s Settings) String(k string) (string, bool) {
	val, found := s[k]

	if found {
		s, ok := val.(string)
		return s, ok
	} else {
		return "", false
	}
}

func (s Settings) Boolean(k string) (bool, bool) {
	val, found := s[k]

	if found {
		b, ok := val.(bool)
		return b, ok
	} else {
		return false, false
	}
}

func (s Settings) Int(k string) (int, bool) {
	val, found := s[k]

	if found {
		i, ok := val.(int)
		return i, ok
	} else {
		return 0, false
	}
}

func (s Settings) Float(k string) (float64, bool) {
	val, found := s[k]

	if found {
		f, ok := val.(float64)
		return f, ok
	} else {
		return 0.0, false
	}
}

// Output is the merged settings of every rule that matched an Input.
type Output struct {
	Settings map[string]Settings
}

func (o *Output) merge(settings map[string]Settings) {
	for ns, s := range settings {
		existing, found := o.Settings[ns]
		if !found {
			existing = Settings{}
			o.Settings[ns] = existing
		}

		for k, v := range s {
			existing[k] = v
		}
	}
}

func (o Output) String(ns string, key string, def string) string {
	if s, nsOk := o.Settings[ns]; nsOk {
		if v, valOk := s.String(key); valOk {
			return v
		}
	}

	return def
}

func (o Output) Int(ns string, key string, def int) int {
	if s, nsOk := o.Settings[ns]; nsOk {
		if v, valOk := s.Int(key); valOk {
			return v
		}
	}

	return def
}

func (o Output) Float(ns string, key string, def float64) float64 {
	if s, nsOk := o.Settings[ns]; nsOk {
		if v, valOk := s.Float(key); valOk {
			return v
		}
	}

	return def
}

func (o Output) Boolean(ns string, key string, def bool) bool {
	if s, nsOk := o.Settings[ns]; nsOk {
		if v, valOk := s.Boolean(key); valOk {
			return v
		}
	}

	return def
}
