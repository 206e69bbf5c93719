package hedge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var basisPointsPerUnit = decimal.NewFromInt(10000)

// BasisPointsToDecimal converts a basis point quantity to its decimal form.
func BasisPointsToDecimal(bps decimal.Decimal) decimal.Decimal {
	return bps.Div(basisPointsPerUnit)
}

// BuildUpdatePrompt renders the instruction that extracts a single update
// from free text.
func BuildUpdatePrompt(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalidInput("request text is empty")
	}

	bps25 := BasisPointsToDecimal(decimal.NewFromInt(25))
	bps100 := BasisPointsToDecimal(decimal.NewFromInt(100))

	var prompt strings.Builder
	prompt.WriteString("Extract the seller number and the hedge factor (given in basis points) from the text below:\n")
	fmt.Fprintf(&prompt, "%q\n\n", text)

	prompt.WriteString("Return ONLY valid JSON in this exact format (no markdown, no code blocks, no explanation):\n")
	fmt.Fprintf(&prompt, `{"sellerNumber": "123450001", "hedgeFactor": %s}`+"\n\n", bps25)

	prompt.WriteString("Rules:\n")
	fmt.Fprintf(&prompt, "- Convert basis points to decimal form: decimal = bps / %s (25bps = %s, 100bps = %s)\n",
		basisPointsPerUnit, bps25, bps100)
	prompt.WriteString("- sellerNumber must be a string containing only digits\n")
	prompt.WriteString("- hedgeFactor must be a decimal number between 0 and 1\n")
	prompt.WriteString("- Return only the JSON object, nothing else\n")

	return prompt.String(), nil
}

// BuildReportPrompt renders the instruction that maps every record's rate to
// a factor. The records are embedded verbatim as JSON.
func BuildReportPrompt(records []SellerRateRecord) (string, error) {
	if len(records) == 0 {
		return "", invalidInput("seller list is empty")
	}
	if err := ValidateRecords(records); err != nil {
		return "", err
	}

	list, err := json.Marshal(records)
	if err != nil {
		return "", invalidInput("encode seller list: %v", err)
	}

	var prompt strings.Builder
	prompt.WriteString("You are given a list of records with IDs and rt (rate between 0 and 1).\n")
	prompt.WriteString("Map each rate to a factor using the following nonlinear anchor points:\n\n")
	for _, a := range Anchors {
		fmt.Fprintf(&prompt, "rate %s -> factor %s\n", a.Rate.StringFixed(2), a.Factor)
	}

	prompt.WriteString("\nImportant:\n")
	prompt.WriteString("- The factor decreases as the rate increases.\n")
	prompt.WriteString("- Do NOT use linear interpolation. Assume a curved mapping between anchors.\n")
	prompt.WriteString("- A rate equal to an anchor rate must map exactly to that anchor's factor.\n")
	fmt.Fprintf(&prompt, "- Min value is %s. Max value is %s. The generated factor cannot be less than %s or greater than %s.\n",
		FactorMin, FactorMax, FactorMin, FactorMax)
	fmt.Fprintf(&prompt, "- Average factor should be %s.\n", TargetMeanFactor)
	prompt.WriteString("- Return one entry per input record, in the same order, keeping Id and rt unchanged.\n")
	prompt.WriteString("- Return ONLY valid JSON in this exact format (no markdown, no code blocks, no explanation):\n")
	prompt.WriteString(`{"output":[{"Id":"1234567","rt":0.88,"factor":28}, ...]}` + "\n\n")

	prompt.WriteString("Here is the input list:\n")
	prompt.Write(list)
	prompt.WriteString("\n")

	return prompt.String(), nil
}
