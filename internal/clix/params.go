package clix

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
)

// maxLimit caps page sizes requested on the command line.
const maxLimit = 500

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// MessageParams are the flags of a one-shot classification.
type MessageParams struct {
	CustomerID string
	Product    string
	// Input is a file path or the message text itself.
	Input string
}

// ParseMessage reads --customer-id, --product and --message. A single
// positional argument is used as the input when --message is absent.
func ParseMessage(flags *pflag.FlagSet, args []string) (MessageParams, error) {
	customerID, _ := flags.GetString("customer-id")
	product, _ := flags.GetString("product")
	input, _ := flags.GetString("message")

	if input == "" && len(args) > 0 {
		input = args[0]
	}
	if input != "" && len(args) > 0 && args[0] != input {
		return MessageParams{}, errors.New("pass the message either with --message or as an argument, not both")
	}

	var missing []string
	if strings.TrimSpace(customerID) == "" {
		missing = append(missing, "--customer-id")
	}
	if strings.TrimSpace(product) == "" {
		missing = append(missing, "--product")
	}
	if strings.TrimSpace(input) == "" {
		missing = append(missing, "--message")
	}
	if len(missing) > 0 {
		return MessageParams{}, errors.New("missing required flags: " + strings.Join(missing, ", "))
	}
	return MessageParams{CustomerID: customerID, Product: product, Input: input}, nil
}
