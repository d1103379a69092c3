package builder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/erdschema/internal/builder"
	"github.com/tordrt/erdschema/internal/ddl"
	"github.com/tordrt/erdschema/internal/schema"
	"github.com/tordrt/erdschema/internal/testutil"
)

func parse(t *testing.T, script string) *schema.Database {
	t.Helper()
	db, err := builder.Parse(script, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, schema.Validate(db))
	return db
}

func strPtr(s string) *string { return &s }

func TestParse_CustomersAndOrders(t *testing.T) {
	db := parse(t, `
CREATE TABLE Customers (CustomerId int primary key, Name nvarchar(50) not null);
CREATE TABLE Orders (OrderId int primary key, CustomerId int not null, foreign key references Customers);
`)

	require.Len(t, db.Tables, 2)
	assert.Equal(t, "Customers", db.Tables[0].Name)
	assert.Equal(t, "Orders", db.Tables[1].Name)

	assert.Equal(t, schema.Table{
		Schema: "dbo",
		Name:   "Customers",
		Columns: []schema.Column{
			{Ordinal: 0, Name: "CustomerId", Type: "int", IsNullable: false},
			{Ordinal: 1, Name: "Name", Type: "nvarchar", IsNullable: false},
		},
		PrimaryKey: []string{"CustomerId"},
	}, db.Tables[0])

	assert.Equal(t, []schema.ForeignKey{{
		Name:             "FK_Orders_Customers",
		ParentSchema:     "dbo",
		ParentTable:      "Orders",
		ReferencedSchema: "dbo",
		ReferencedTable:  "Customers",
	}}, db.ForeignKeys)
}

func TestParse_SchemaQualifiedTables(t *testing.T) {
	db := parse(t, `
CREATE TABLE sales.Orders (Id int PRIMARY KEY, CustomerId int REFERENCES sales.Customers(Id));
CREATE TABLE sales.Customers (Id int PRIMARY KEY);
`)

	require.Len(t, db.Tables, 2)
	assert.Equal(t, "sales", db.Tables[0].Schema)
	assert.Equal(t, "Customers", db.Tables[0].Name)
	assert.Equal(t, "Orders", db.Tables[1].Name)

	require.Len(t, db.ForeignKeys, 1)
	assert.Equal(t, "sales", db.ForeignKeys[0].ParentSchema)
	assert.Equal(t, "sales", db.ForeignKeys[0].ReferencedSchema)
}

func TestParse_AlterTableForwardDeclaration(t *testing.T) {
	db := parse(t, `
CREATE TABLE Items (Id int NOT NULL);
alter table Items add Name nvarchar(200) not null;
alter table NewTable add Value int null;
`)

	require.Len(t, db.Tables, 2)

	items := db.Tables[0]
	assert.Equal(t, "Items", items.Name)
	require.Len(t, items.Columns, 2)
	assert.Equal(t, "Name", items.Columns[1].Name)
	assert.Equal(t, 1, items.Columns[1].Ordinal)

	newTable := db.Tables[1]
	assert.Equal(t, "NewTable", newTable.Name)
	assert.Equal(t, []schema.Column{{Ordinal: 0, Name: "Value", Type: "int", IsNullable: true}}, newTable.Columns)
	assert.Nil(t, newTable.PrimaryKey)
}

func TestParse_Redeclaration(t *testing.T) {
	db := parse(t, `
CREATE TABLE T (A int PRIMARY KEY, B int, C int);
CREATE TABLE T (X nvarchar(10) NOT NULL, Y int);
`)

	require.Len(t, db.Tables, 1)
	assert.Equal(t, []schema.Column{
		{Ordinal: 0, Name: "X", Type: "nvarchar", IsNullable: false},
		{Ordinal: 1, Name: "Y", Type: "int", IsNullable: true},
	}, db.Tables[0].Columns)
	assert.Nil(t, db.Tables[0].PrimaryKey)
}

func TestParse_DuplicateColumnLastWins(t *testing.T) {
	db := parse(t, `
CREATE TABLE T (A int NOT NULL, B int);
ALTER TABLE T ADD a bigint NULL;
`)

	require.Len(t, db.Tables[0].Columns, 2)
	assert.Equal(t, schema.Column{Ordinal: 0, Name: "a", Type: "bigint", IsNullable: true}, db.Tables[0].Columns[0])
}

func TestParse_CompositeKey(t *testing.T) {
	db := parse(t, `
CREATE TABLE OrderLines (
	Note nvarchar(max),
	OrderId int,
	LineNo int,
	Qty int NULL,
	CONSTRAINT PK_OrderLines PRIMARY KEY (orderid, LineNo)
);
ALTER TABLE OrderLines ADD PRIMARY KEY (Qty);
`)

	table := db.Tables[0]
	// Key names resolve to the declared column spelling.
	assert.Equal(t, []string{"OrderId", "LineNo", "Qty"}, table.PrimaryKey)

	assert.True(t, table.Columns[0].IsNullable, "non-key column defaults to nullable")
	assert.False(t, table.Columns[1].IsNullable, "table-level key member is not null")
	assert.False(t, table.Columns[2].IsNullable)
	assert.True(t, table.Columns[3].IsNullable, "explicit NULL wins over key membership")
}

func TestParse_PrimaryKeyOnMissingColumn(t *testing.T) {
	db := parse(t, "CREATE TABLE T (A int, PRIMARY KEY (Missing))")
	assert.Nil(t, db.Tables[0].PrimaryKey)
}

func TestParse_TypeNormalization(t *testing.T) {
	db := parse(t, `CREATE TABLE T (
	a NVARCHAR(50),
	b [decimal](18, 2),
	c dbo.MyType,
	d AS (a + 'x'),
	e NOT NULL,
	f character varying(20)
)`)

	var types []string
	for _, c := range db.Tables[0].Columns {
		types = append(types, c.Type)
	}
	assert.Equal(t, []string{"nvarchar", "decimal", "mytype", "unknown", "unknown", "character"}, types)
	assert.True(t, db.Tables[0].Columns[3].IsComputed)
	assert.False(t, db.Tables[0].Columns[0].IsComputed)
}

func TestParse_ForeignKeys(t *testing.T) {
	db := parse(t, `
CREATE TABLE b.Child (Id int, ParentId int CONSTRAINT FK_named REFERENCES a.Parent(Id));
CREATE TABLE a.Child (Id int, ParentId int, FOREIGN KEY (ParentId) REFERENCES a.Parent(Id));
ALTER TABLE a.Child ADD FOREIGN KEY (Id) REFERENCES Missing(Id);
CREATE TABLE a.Parent (Id int PRIMARY KEY);
`)

	// Dangling references are kept.
	require.Len(t, db.ForeignKeys, 3)
	assert.Equal(t, schema.ForeignKey{
		Name: "FK_Child_Parent", ParentSchema: "a", ParentTable: "Child", ReferencedSchema: "a", ReferencedTable: "Parent",
	}, db.ForeignKeys[0])
	assert.Equal(t, schema.ForeignKey{
		Name: "FK_named", ParentSchema: "b", ParentTable: "Child", ReferencedSchema: "a", ReferencedTable: "Parent",
	}, db.ForeignKeys[1])
	assert.Equal(t, schema.ForeignKey{
		Name: "FK_Child_Missing", ParentSchema: "a", ParentTable: "Child", ReferencedSchema: "dbo", ReferencedTable: "Missing",
	}, db.ForeignKeys[2])
}

func TestParse_OrderIndependence(t *testing.T) {
	statements := []string{
		"CREATE TABLE Customers (Id int PRIMARY KEY, Name nvarchar(50) NOT NULL)",
		"CREATE TABLE sales.Orders (Id int PRIMARY KEY, CustomerId int NOT NULL, FOREIGN KEY (CustomerId) REFERENCES Customers(Id))",
		"CREATE TABLE Products (Sku nvarchar(20) NOT NULL, CONSTRAINT PK_Products PRIMARY KEY (Sku))",
		"CREATE TABLE sales.Lines (OrderId int REFERENCES sales.Orders(Id), Sku nvarchar(20) CONSTRAINT FK_Lines_Sku REFERENCES Products(Sku))",
		"EXEC sp_addextendedproperty @name = N'MS_Description', @value = N'Registered customers', @level1type = N'TABLE', @level1name = N'Customers'",
	}

	forward := parse(t, joinStatements(statements))

	reversed := make([]string, len(statements))
	for i, s := range statements {
		reversed[len(statements)-1-i] = s
	}
	backward := parse(t, joinStatements(reversed))

	assert.Equal(t, forward, backward)
	require.NotNil(t, forward.FindTable("dbo", "Customers").Comment)
}

func joinStatements(stmts []string) string {
	var out string
	for _, s := range stmts {
		out += s + ";\n"
	}
	return out
}

func TestParse_Comments(t *testing.T) {
	db := parse(t, `
CREATE TABLE dbo.Orders (Id int PRIMARY KEY, Total money);
CREATE TABLE sales.Invoices (Id int PRIMARY KEY);
EXEC sp_addextendedproperty @name = N'MS_Description', @value = N'All orders', @level1type = N'TABLE', @level1name = N'Orders';
EXEC sp_addextendedproperty @name = N'MS_Description', @value = N'Gross total', @level1type = N'TABLE', @level1name = N'orders', @level2type = N'COLUMN', @level2name = N'TOTAL';
EXEC sp_addextendedproperty @name = N'MS_Description', @value = N'Issued invoices', @level1type = N'TABLE', @level1name = N'invoices';
EXEC sp_addextendedproperty @name = N'MS_Description', @value = N'Falls back to table', @level1type = N'TABLE', @level1name = N'Invoices', @level2type = N'COLUMN', @level2name = N'Nope';
EXEC sp_addextendedproperty @name = N'MS_Description', @value = N'Nobody home', @level1type = N'TABLE', @level1name = N'Ghost';
EXEC sp_addextendedproperty @name = N'Caption', @value = N'Ignored', @level1type = N'TABLE', @level1name = N'Orders', @level2type = N'COLUMN', @level2name = N'Id';
`)

	orders := db.FindTable("dbo", "Orders")
	require.NotNil(t, orders)
	assert.Equal(t, strPtr("All orders"), orders.Comment)
	assert.Equal(t, strPtr("Gross total"), orders.Column("Total").Comment)
	assert.Nil(t, orders.Column("Id").Comment)

	invoices := db.FindTable("sales", "Invoices")
	require.NotNil(t, invoices)
	// The later annotation replaces the earlier one on the same target.
	assert.Equal(t, strPtr("Falls back to table"), invoices.Comment)

	assert.Len(t, db.Tables, 2, "annotations never create tables")
}

func TestParse_DefaultSchemaPreferredForComments(t *testing.T) {
	db := parse(t, `
CREATE TABLE a.Orders (Id int);
CREATE TABLE dbo.Orders (Id int);
EXEC sp_addextendedproperty @name = 'MS_Description', @value = 'default schema', @level1type = 'TABLE', @level1name = 'Orders';
`)

	assert.Nil(t, db.FindTable("a", "Orders").Comment)
	assert.Equal(t, strPtr("default schema"), db.FindTable("dbo", "Orders").Comment)
}

func TestParse_SyntaxErrorYieldsNoModel(t *testing.T) {
	db, err := builder.Parse("CREATE TABLE Ok (Id int);\nCREATE TABLE Broken (Id int", nil)
	require.Error(t, err)
	assert.Nil(t, db)

	var parseErr *ddl.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Diagnostics[0].Line)
}

func TestParse_EmptyScript(t *testing.T) {
	db := parse(t, "")
	assert.Empty(t, db.Tables)
	assert.Empty(t, db.ForeignKeys)
}

func TestBuilder_DatabaseIsRepeatable(t *testing.T) {
	stmts, err := ddl.Recognize(`
CREATE TABLE T (Id int);
EXEC sp_addextendedproperty @name = 'MS_Description', @value = 'x', @level1type = 'TABLE', @level1name = 'T';
`)
	require.NoError(t, err)

	b := builder.New(nil)
	for _, s := range stmts {
		b.Apply(s)
	}
	first := b.Database()
	second := b.Database()
	assert.Equal(t, first, second)

	*first.Tables[0].Comment = "changed"
	assert.Equal(t, "x", *second.Tables[0].Comment, "frozen models do not share state")
}
