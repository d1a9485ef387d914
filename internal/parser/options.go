package parser

// options holds the parsed --k/-k flags and values for one command, plus
// the remaining positional tokens.
type options struct {
	values map[string]string
	flags  map[string]bool
	order  []string // option keys in appearance order, for round-trip rendering
}

func newOptions() *options {
	return &options{values: map[string]string{}, flags: map[string]bool{}}
}

func (o *options) setValue(key, val string) {
	o.values[key] = val
	o.order = append(o.order, key)
}

func (o *options) setFlag(key string) {
	o.flags[key] = true
	o.order = append(o.order, key)
}

func (o *options) Get(key string) (string, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *options) Bool(key string) bool {
	return o.flags[key]
}

// splitOptions partitions toks into positional tokens and parsed options,
// validating every --k/-k against allowed (key -> isBoolFlag). An option not
// present in allowed yields InvalidOption.
func splitOptions(line string, toks []token, allowed map[string]bool) ([]token, *options, *ParseError) {
	opts := newOptions()
	var positional []token

	i := 0
	for i < len(toks) {
		t := toks[i]
		switch t.kind {
		case tokOptionLongEq:
			if !keyAllowed(allowed, t.key) {
				return nil, nil, newErr(ErrInvalidOption, line, t.offset, "unknown option --"+t.key)
			}
			opts.setValue(t.key, t.value)
			i++

		case tokOptionLong, tokOptionShort:
			isFlag, known := allowed[t.key]
			if !known {
				return nil, nil, newErr(ErrInvalidOption, line, t.offset, "unknown option "+t.raw)
			}
			if isFlag {
				opts.setFlag(t.key)
				i++
				continue
			}
			if i+1 >= len(toks) || isOptionToken(toks[i+1]) {
				return nil, nil, newErr(ErrMissingArgument, line, t.offset, "option "+t.raw+" requires a value")
			}
			opts.setValue(t.key, tokenPlainValue(toks[i+1]))
			i += 2

		default:
			positional = append(positional, t)
			i++
		}
	}
	return positional, opts, nil
}

func keyAllowed(allowed map[string]bool, key string) bool {
	_, ok := allowed[key]
	return ok
}

func isOptionToken(t token) bool {
	switch t.kind {
	case tokOptionLong, tokOptionLongEq, tokOptionShort:
		return true
	default:
		return false
	}
}

func tokenPlainValue(t token) string {
	switch t.kind {
	case tokQuoted:
		return t.value
	default:
		return t.raw
	}
}
