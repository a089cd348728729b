package utils

import (
	"encoding"
	"fmt"
	"math/big"

	"github.com/spf13/pflag"
)

var (
	_ pflag.Value = (*BigIntValue)(nil)
	_ pflag.Value = (*TextMarshalerValue)(nil)
)

// Flag describes a command line flag. The type of Value selects the pflag
// kind it is registered as.
type Flag struct {
	Name         string
	Abbreviation string
	Value        interface{}
	Usage        string
}

func (f *Flag) GetName() string         { return f.Name }
func (f *Flag) GetAbbreviation() string { return f.Abbreviation }
func (f *Flag) GetUsage() string        { return f.Usage }
func (f *Flag) GetValue() interface{}   { return f.Value }

// ****************************************
// **                                    **
// **       BIG INT FLAG                 **
// **       & CUSTOM VALUE               **
// **                                    **
// ****************************************

// BigIntValue is a pflag.Value holding a decimal *big.Int, used for bond
// amounts that overflow the native integer flags.
type BigIntValue big.Int

func newBigIntValue(val *big.Int) *BigIntValue {
	if val == nil {
		val = new(big.Int)
	}
	return (*BigIntValue)(val)
}

func (b *BigIntValue) Set(val string) error {
	bigIntVal, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return fmt.Errorf("failed to parse *big.Int value: %s", val)
	}
	if bigIntVal.Sign() < 0 {
		return fmt.Errorf("negative amount: %s", val)
	}
	*b = BigIntValue(*bigIntVal)
	return nil
}

func (b *BigIntValue) Type() string {
	return "big.Int"
}

func (b *BigIntValue) String() string {
	return (*big.Int)(b).String()
}

// ****************************************
// **                                    **
// **       TEXT MARSHALER FLAG          **
// **       & CUSTOM VALUE               **
// **                                    **
// ****************************************
type TextMarshaler interface {
	encoding.TextMarshaler
	encoding.TextUnmarshaler
}

// TextMarshalerValue is a pflag.Value for types with a text form, like
// account addresses.
type TextMarshalerValue struct {
	Value TextMarshaler
}

func NewTextMarshalerValue(val TextMarshaler) *TextMarshalerValue {
	return &TextMarshalerValue{Value: val}
}

func (t *TextMarshalerValue) Set(val string) error {
	return t.Value.UnmarshalText([]byte(val))
}

func (t *TextMarshalerValue) Type() string {
	return "textMarshaler"
}

func (t *TextMarshalerValue) String() string {
	text, err := t.Value.MarshalText()
	if err != nil {
		return ""
	}
	return string(text)
}
