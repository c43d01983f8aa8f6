package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>POS PURCHASE STARBUCKS STORE #1234
<MEMO>coffee run
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParser_ParseFile(t *testing.T) {
	parser := NewParser()

	txns, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX), "bank.ofx")
	require.NoError(t, err)
	require.Len(t, txns, 2)

	first := txns[0]
	assert.Equal(t, "2024011501", first.ID)
	assert.Equal(t, "STARBUCKS STORE #1234", first.Payee)
	assert.Equal(t, "POS PURCHASE STARBUCKS STORE #1234", first.Narration)
	assert.InDelta(t, 25.50, first.Amount, 0.001)
	assert.Equal(t, "1234567890", first.AccountID)
	assert.Equal(t, "DEBIT", first.Type)
	assert.Equal(t, "bank.ofx", first.Source)
	assert.Equal(t, "coffee run", first.Metadata["memo"])
	assert.Contains(t, first.Metadata["timestamp"], "2024-01-15")
	assert.NotEmpty(t, first.Hash)

	check := txns[1]
	assert.Equal(t, "CHECK", check.Type)
	assert.Equal(t, "1234", check.Metadata["check_number"])
}

func TestParser_AsRecordFeedsEngine(t *testing.T) {
	parser := NewParser()

	txns, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX), "bank.ofx")
	require.NoError(t, err)
	require.NotEmpty(t, txns)

	record := txns[0].AsRecord()
	assert.Equal(t, "STARBUCKS STORE #1234", record["payee"])
	assert.Equal(t, "DEBIT", record["txn_type"])
	assert.Equal(t, "coffee run", record["memo"])
}

func TestParser_ParseFile_Invalid(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseFile(context.Background(), strings.NewReader("not ofx at all"), "junk")
	require.Error(t, err)
}

func TestParser_Preprocess(t *testing.T) {
	parser := NewParser()

	in := "\n\n  OFXHEADER:100\n<SEVERITY>Info</SEVERITY>\n<FITID\n"
	out := parser.preprocess(in)

	assert.True(t, strings.HasPrefix(out, "OFXHEADER:100"))
	assert.Contains(t, out, "<SEVERITY>INFO</SEVERITY>")
	assert.Contains(t, out, "<FITID>")
}
