package handler

import (
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/hype-store/internal/domain/order"
)

// timeLayout renders timestamps with millisecond precision in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Bounds for decoded numbers. Values outside them are treated as unusable:
// rescaling a decimal with a huge exponent allocates 10^exp.
const (
	maxNumberLength   = 64
	maxNumberExponent = 20
	maxNumberDigits   = 38
)

func decodeConfirmRequest(data []byte) (order.ConfirmRequest, error) {
	var req order.ConfirmRequest
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "nome_cliente":
			req.CustomerName, err = decodeString(d)
		case "endereco_cliente":
			req.Address, err = decodeString(d)
		case "telefone_cliente":
			req.Phone, err = decodeString(d)
		case "mensagem_cliente":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var note string
			if note, err = decodeString(d); err == nil {
				req.Note = &note
			}
		case "total":
			req.Total, err = decodeMoney(d)
		case "produtos":
			req.Cart, err = decodeCart(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return order.ConfirmRequest{}, err
	}
	return req, nil
}

func decodeCart(d *jx.Decoder) ([]order.CartEntry, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var cart []order.CartEntry
	err := d.Arr(func(d *jx.Decoder) error {
		var entry order.CartEntry
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "nome":
				entry.Name, err = decodeString(d)
			case "preco":
				entry.Price, err = decodeMoney(d)
			case "quantidade":
				entry.Quantity, err = decodeQuantity(d)
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrap(err, string(key))
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "produtos[%d]", len(cart))
		}
		cart = append(cart, entry)
		return nil
	})
	return cart, err
}

func decodeStatus(data []byte) (order.Status, error) {
	var status string
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "status" {
			return d.Skip()
		}
		var err error
		status, err = decodeString(d)
		if err != nil {
			return errors.Wrap(err, "status")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return order.Status(status), nil
}

// decodeString accepts a JSON string, treating null as empty.
func decodeString(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("expected string, got %s", tt)
	}
}

// decodeMoney accepts a JSON number or a numeric string. Anything else,
// including numbers outside the supported magnitude, yields an invalid value
// for the caller to reject.
func decodeMoney(d *jx.Decoder) (decimal.NullDecimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = strings.TrimSpace(s)
	default:
		return decimal.NullDecimal{}, d.Skip()
	}
	if len(raw) > maxNumberLength {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || !inRange(v) {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(v), nil
}

func inRange(v decimal.Decimal) bool {
	exp := v.Exponent()
	return exp >= -maxNumberExponent && exp <= maxNumberExponent && v.NumDigits() <= maxNumberDigits
}

// decodeQuantity truncates fractional values. Missing or non-numeric
// quantities decode as zero and are normalized by the service.
func decodeQuantity(d *jx.Decoder) (int, error) {
	v, err := decodeMoney(d)
	if err != nil || !v.Valid {
		return 0, err
	}
	q := v.Decimal.Truncate(0)
	switch {
	case q.GreaterThan(decimal.NewFromInt(math.MaxInt32)):
		return math.MaxInt32, nil
	case q.IsNegative():
		return 0, nil
	default:
		return int(q.IntPart()), nil
	}
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(timeLayout))
}

func encodeOrderFields(e *jx.Encoder, o *order.Order) {
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("nome_cliente")
	e.Str(o.CustomerName)
	e.FieldStart("endereco_cliente")
	e.Str(o.Address)
	e.FieldStart("telefone_cliente")
	e.Str(o.Phone)
	e.FieldStart("mensagem_cliente")
	if o.Note != nil {
		e.Str(*o.Note)
	} else {
		e.Null()
	}
	e.FieldStart("total")
	encodeDecimal(e, o.Total)
	e.FieldStart("data_pedido")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("status")
	e.Str(string(o.Status))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	encodeOrderFields(e, o)
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l order.Line) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(l.ID)
	e.FieldStart("pedido_id")
	e.Int64(l.OrderID)
	e.FieldStart("produto_nome")
	e.Str(l.ProductName)
	e.FieldStart("produto_preco")
	encodeDecimal(e, l.UnitPrice)
	e.FieldStart("quantidade")
	e.Int(l.Quantity)
	e.ObjEnd()
}

// EncodeOrderSummary writes a list item with its line count and
// line-derived total.
func EncodeOrderSummary(e *jx.Encoder, s order.Summary) {
	e.ObjStart()
	encodeOrderFields(e, &s.Order)
	e.FieldStart("total_produtos")
	e.Int64(s.LineCount)
	e.FieldStart("valor_total")
	encodeDecimal(e, s.LinesTotal)
	e.ObjEnd()
}

func encodeDetails(e *jx.Encoder, d *order.Details) {
	e.ObjStart()
	e.FieldStart("pedido")
	encodeOrder(e, d.Order)
	e.FieldStart("produtos")
	e.ArrStart()
	for _, l := range d.Lines {
		encodeLine(e, l)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeSalesReport(e *jx.Encoder, r *order.SalesReport) {
	e.ObjStart()
	e.FieldStart("total_vendas")
	encodeDecimal(e, r.TotalSales)
	e.FieldStart("total_pedidos")
	e.Int64(r.OrderCount)
	e.FieldStart("media_pedido")
	encodeDecimal(e, r.AverageOrder)
	e.ObjEnd()
}
