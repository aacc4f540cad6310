// =============================================================================
// Tax Transaction Manager - XML Writer Module
// =============================================================================
//
// This module is responsible for generating the XML report of a processed
// transaction file.
//
// XML STRUCTURE:
//
//   <transactions source="sales.csv">          <!-- Root element -->
//     <summary>                                <!-- Totals of the run -->
//       <total>2</total>
//       <valid>1</valid>
//       <invalid>1</invalid>
//       <skipped>0</skipped>
//       <deleted>0</deleted>
//       <taxRate>20.00</taxRate>
//       <finalTax>2.00</finalTax>
//     </summary>
//     <transaction n="1" id="..." valid="true"> <!-- One element per record -->
//       <billNumber>B1</billNumber>
//       <itemCode>ITM1</itemCode>
//       <internalPrice>10.00</internalPrice>
//       <discount>0.00</discount>
//       <salePrice>20.00</salePrice>
//       <quantity>1</quantity>
//       <rawTotal>20.00</rawTotal>
//       <checksum>24</checksum>
//       <importedChecksum>24</importedChecksum>
//       <profit>10.00</profit>
//     </transaction>
//   </transactions>
//
// Amounts are written with two decimals. Records keep their collection order.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode"

	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/ginjaninja78/tax-transaction-manager/internal/validation"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string

	// RootElement is the name of the root element.
	// Default: "transactions"
	RootElement string

	// TransactionElement is the name of the per-record element.
	// Default: "transaction"
	TransactionElement string

	// IndexAttribute is the attribute carrying the 1-based record position.
	// Default: "n"
	IndexAttribute string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
		RootElement:           "transactions",
		TransactionElement:    "transaction",
		IndexAttribute:        "n",
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate creates the XML report for transactions and summary.
func Generate(transactions []types.Transaction, summary types.ReportSummary) ([]byte, error) {
	return GenerateWithOptions(transactions, summary, DefaultGenerateOptions())
}

// GenerateWithOptions creates the XML report with custom options.
func GenerateWithOptions(transactions []types.Transaction, summary types.ReportSummary, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version=\"%s\" encoding=\"%s\"?>\n",
			options.XMLVersion, options.Encoding))
	}

	doc := buildDocument(transactions, summary, options)

	xmlBytes, err := marshalWithIndent(doc, options.Indent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal XML: %w", err)
	}

	buffer.Write(xmlBytes)

	return buffer.Bytes(), nil
}

// WriteFile generates the XML report and writes it to path.
func WriteFile(path string, transactions []types.Transaction, summary types.ReportSummary) error {
	data, err := Generate(transactions, summary)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write XML file: %w", err)
	}

	return nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr   `xml:",attr"`
	Value      string       `xml:",chardata"`
	Children   []XMLElement `xml:",any"`
}

// buildDocument constructs the XML document structure.
func buildDocument(transactions []types.Transaction, summary types.ReportSummary, options GenerateOptions) XMLElement {
	doc := XMLElement{
		XMLName: xml.Name{Local: options.RootElement},
	}

	if summary.SourceFile != "" {
		doc.Attributes = append(doc.Attributes, xml.Attr{
			Name:  xml.Name{Local: "source"},
			Value: filepath.Base(summary.SourceFile),
		})
	}

	doc.Children = append(doc.Children, buildSummaryElement(summary))

	for i, transaction := range transactions {
		doc.Children = append(doc.Children, buildTransactionElement(transaction, i+1, options))
	}

	return doc
}

// buildSummaryElement constructs the summary element.
func buildSummaryElement(summary types.ReportSummary) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: "summary"},
		Children: []XMLElement{
			createSimpleElement("total", strconv.Itoa(summary.Total)),
			createSimpleElement("valid", strconv.Itoa(summary.Valid)),
			createSimpleElement("invalid", strconv.Itoa(summary.Invalid)),
			createSimpleElement("skipped", strconv.Itoa(summary.Skipped)),
			createSimpleElement("deleted", strconv.Itoa(summary.Deleted)),
			createSimpleElement("taxRate", validation.FormatAmount(summary.TaxRate)),
			createSimpleElement("finalTax", validation.FormatAmount(summary.FinalTax)),
		},
	}
}

// buildTransactionElement constructs a transaction XML element.
//
// STRUCTURE:
//   <transaction n="1" id="..." valid="true">
//     <billNumber>B1</billNumber>
//     ...
//   </transaction>
func buildTransactionElement(t types.Transaction, index int, options GenerateOptions) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: options.TransactionElement},
		Attributes: []xml.Attr{
			{Name: xml.Name{Local: options.IndexAttribute}, Value: strconv.Itoa(index)},
			{Name: xml.Name{Local: "id"}, Value: t.ID},
			{Name: xml.Name{Local: "valid"}, Value: strconv.FormatBool(t.Valid)},
		},
		Children: []XMLElement{
			createSimpleElement("billNumber", t.BillNumber),
			createSimpleElement("itemCode", t.ItemCode),
			createSimpleElement("internalPrice", validation.FormatAmount(t.InternalPrice)),
			createSimpleElement("discount", validation.FormatAmount(t.Discount)),
			createSimpleElement("salePrice", validation.FormatAmount(t.SalePrice)),
			createSimpleElement("quantity", strconv.FormatInt(int64(t.Quantity), 10)),
			createSimpleElement("rawTotal", validation.FormatAmount(t.RawTotal)),
			createSimpleElement("checksum", strconv.FormatInt(int64(t.CurrentChecksum), 10)),
			createSimpleElement("importedChecksum", strconv.FormatInt(int64(t.ImportedChecksum()), 10)),
			createSimpleElement("profit", validation.FormatAmount(t.Profit)),
		},
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// createSimpleElement creates a simple XML element with a text value.
func createSimpleElement(name, value string) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: name},
		Value:   value,
	}
}

// marshalWithIndent marshals the document with indentation.
func marshalWithIndent(doc XMLElement, indent string) ([]byte, error) {
	if doc.XMLName.Local == "" {
		return nil, fmt.Errorf("root element has no name")
	}

	var buffer bytes.Buffer
	writeElement(&buffer, doc, indent, 0)
	return buffer.Bytes(), nil
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	for _, attr := range element.Attributes {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", attr.Name.Local, escapeXML(attr.Value)))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")

		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}

		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML. Characters XML 1.0 does not
// allow, such as most control characters, become U+FFFD.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		if !isXMLChar(r) {
			buffer.WriteRune(unicode.ReplacementChar)
			continue
		}
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// =============================================================================
// XSD GENERATION
// =============================================================================

// GenerateXSD returns an XSD schema describing the report produced with
// options.
func GenerateXSD(options GenerateOptions) []byte {
	var buffer bytes.Buffer

	buffer.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
`)

	buffer.WriteString(fmt.Sprintf(`  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="summary"/>
        <xs:element ref="%s" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
      <xs:attribute name="source" type="xs:string" use="optional"/>
    </xs:complexType>
  </xs:element>

`, options.RootElement, options.TransactionElement))

	buffer.WriteString(`  <xs:element name="summary">
    <xs:complexType>
      <xs:sequence>
`)
	for _, field := range summaryFields {
		writeXSDElement(&buffer, field)
	}
	buffer.WriteString(`      </xs:sequence>
    </xs:complexType>
  </xs:element>

`)

	buffer.WriteString(fmt.Sprintf(`  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
`, options.TransactionElement))
	for _, field := range transactionFields {
		writeXSDElement(&buffer, field)
	}
	buffer.WriteString(fmt.Sprintf(`      </xs:sequence>
      <xs:attribute name="%s" type="xs:positiveInteger" use="required"/>
      <xs:attribute name="id" type="xs:string" use="required"/>
      <xs:attribute name="valid" type="xs:boolean" use="required"/>
    </xs:complexType>
  </xs:element>

</xs:schema>
`, options.IndexAttribute))

	return buffer.Bytes()
}

// xsdField describes one child element in the XSD.
type xsdField struct {
	name    string
	xsdType string
}

var summaryFields = []xsdField{
	{"total", "xs:nonNegativeInteger"},
	{"valid", "xs:nonNegativeInteger"},
	{"invalid", "xs:nonNegativeInteger"},
	{"skipped", "xs:nonNegativeInteger"},
	{"deleted", "xs:nonNegativeInteger"},
	{"taxRate", "xs:decimal"},
	{"finalTax", "xs:decimal"},
}

var transactionFields = []xsdField{
	{"billNumber", "xs:string"},
	{"itemCode", "xs:string"},
	{"internalPrice", "xs:decimal"},
	{"discount", "xs:decimal"},
	{"salePrice", "xs:decimal"},
	{"quantity", "xs:integer"},
	{"rawTotal", "xs:decimal"},
	{"checksum", "xs:integer"},
	{"importedChecksum", "xs:integer"},
	{"profit", "xs:decimal"},
}

// writeXSDElement writes an XSD element definition.
func writeXSDElement(buffer *bytes.Buffer, field xsdField) {
	buffer.WriteString(fmt.Sprintf("        <xs:element name=\"%s\" type=\"%s\"/>\n", field.name, field.xsdType))
}
