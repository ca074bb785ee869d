package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

const ofxDateFormat = "20060102"

// WriteOFX writes a one-way OFX 1.02 (SGML) statement for one account:
// each entry becomes a STMTTRN, signed from the account's point of view
// (deposits positive, withdrawals negative).
func WriteOFX(ctx context.Context, st store.Store, accountID uuid.UUID, w io.Writer) error {
	acct, err := st.Account(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	txns, err := st.TransactionsByAccount(ctx, accountID, time.Time{})
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	// An empty statement has no meaningful range; fall back to today so the
	// date fields never render the zero time.
	now := time.Now().UTC()
	start, end := now, now
	if len(txns) > 0 {
		start, end = txns[0].Date, txns[len(txns)-1].Date
	}

	header := `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	write := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	write("<OFX>\n<BANKMSGSRSV1>\n<STMTTRNRS>\n<STMTRS>\n")
	write("<CURDEF>%s\n", acct.Currency)
	write("<BANKACCTFROM>\n<ACCTID>%s\n<ACCTTYPE>CHECKING\n</BANKACCTFROM>\n", acct.Number)
	write("<BANKTRANLIST>\n<DTSTART>%s\n<DTEND>%s\n", start.Format(ofxDateFormat), end.Format(ofxDateFormat))

	for _, t := range txns {
		for _, e := range t.Entries {
			if e.AccountID != accountID {
				continue
			}
			amount := e.SignedEffect(acct.Class)
			trnType := "CREDIT"
			if amount.IsNegative() {
				trnType = "DEBIT"
			}
			write("<STMTTRN>\n")
			write("<TRNTYPE>%s\n", trnType)
			write("<DTPOSTED>%s\n", t.Date.Format(ofxDateFormat))
			write("<TRNAMT>%s\n", amount.StringFixed(2))
			write("<FITID>%s\n", e.ID)
			write("<NAME>%s\n", sgmlEscape(t.Description))
			write("</STMTTRN>\n")
		}
	}

	write("</BANKTRANLIST>\n")
	write("<LEDGERBAL>\n<BALAMT>%s\n<DTASOF>%s\n</LEDGERBAL>\n",
		ledgerBal(acct).StringFixed(2), end.Format(ofxDateFormat))
	write("</STMTRS>\n</STMTTRNRS>\n</BANKMSGSRSV1>\n</OFX>\n")
	return err
}

// ledgerBal reports the statement balance with bank sign conventions:
// liabilities (credit cards) show as negative.
func ledgerBal(a model.Account) decimal.Decimal {
	if a.Class == model.ClassLiability {
		return a.Balance.Neg()
	}
	return a.Balance
}

func sgmlEscape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '<':
			out = append(out, []rune("&lt;")...)
		case '>':
			out = append(out, []rune("&gt;")...)
		case '&':
			out = append(out, []rune("&amp;")...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
