/*
Package dbutils provides prepared-statement data access over database/sql.

Every operation prepares its statement, binds positional parameters, runs it
and releases what it opened before returning:
  - Connections from a properties configuration or a Config
  - Parameter binding with best-effort or strict failure handling
  - Rows as ordered maps or as typed records
  - Insert, update and delete returning the affected row count
  - Chunked batch mutations, pipelined through pgx when available
  - Rich error handling with a failure stage and PostgreSQL error parsing
  - Configurable observability (logging, metrics, tracing)

# Connections

A configuration source holds driverClass, url, user and password:

	driverClass=pgx
	url=postgres://localhost:5432/app
	user=app
	password=secret

	conn, err := dbutils.OpenConnection(ctx, dbutils.FileSource("db.properties"))
	if err != nil {
	    log.Fatal(err)
	}
	defer conn.Close()

GetConnection returns nil instead of an error, after logging it. A pool can
also be opened directly and shared:

	cfg := dbutils.DefaultConfig("pgx", os.Getenv("DATABASE_URL"))
	cfg.Logger = slog.Default()
	cfg.LogSlowQueries = 100 * time.Millisecond

	db, err := dbutils.Open(cfg)
	if err != nil {
	    log.Fatal(err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)

Statements use ? placeholders; they are rewritten to $n for PostgreSQL.

# Queries

	rows, err := dbutils.QueryMaps(ctx, conn, "SELECT id, name FROM person WHERE age > ?", 18)
	for _, row := range rows {
	    fmt.Println(row.Columns(), row.Value("name"))
	}

	type Person struct {
	    ID   int64  `db:"id"`
	    Name string `db:"name"`
	}

	p, err := dbutils.QueryOne[Person](ctx, conn, "SELECT id, name FROM person WHERE id = ?", 7)
	people, err := dbutils.QueryAll[Person](ctx, conn, "SELECT id, name FROM person")

An explicit Mapping avoids reflection:

	m := dbutils.Mapping[Person]{
	    "id":   dbutils.Field(func(p *Person) *int64 { return &p.ID }),
	    "name": dbutils.Field(func(p *Person) *string { return &p.Name }),
	}
	people, err := dbutils.QueryAllWith(ctx, conn, m, "SELECT id, name FROM person")

# Mutations

	n, err := dbutils.Insert(ctx, conn, "INSERT INTO person (id, name) VALUES (?, ?)", 1, "Ann")

	res, err := dbutils.BatchInsert(ctx, conn, "INSERT INTO person (id, name) VALUES (?, ?)", len(params), params)
	fmt.Println(res.Executed, res.Flushes, res.RowsAffected)

# Error Handling

Failed operations return a sentinel result (nil, -1) and an error. An error
returned together with a usable result reports parameters left unbound or
columns left unmapped:

	people, err := dbutils.QueryAll[Person](ctx, conn, query)
	if err != nil && people == nil {
	    return err
	}
	if dbutils.IsMapping(err) {
	    // some fields were not set
	}

	var dbErr *dbutils.Error
	if errors.As(err, &dbErr) {
	    fmt.Println(dbErr.Stage)      // execute
	    fmt.Println(dbErr.Code)       // DUPLICATE
	    fmt.Println(dbErr.Constraint) // person_pkey
	}
*/
package dbutils
