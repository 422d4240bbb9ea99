package main

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// RunInspectFKs connects to Postgres using dsn and prints the foreign key
// constraints on this app's tables, then checks that the captures->profiles
// cascade the server installs at startup is actually present.
func RunInspectFKs(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT
		  con.conname AS constraint_name,
		  rel.relname AS table_name,
		  array_agg(att.attname ORDER BY u.attnum) AS src_columns,
		  confrel.relname AS referenced_table,
		  pg_get_constraintdef(con.oid) AS definition
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_class confrel ON confrel.oid = con.confrelid
		JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON true
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
		WHERE con.contype = 'f'
		  AND rel.relname IN ('users', 'profiles', 'captures', 'stat_sheets', 'refresh_tokens')
		GROUP BY con.conname, con.oid, rel.relname, confrel.relname
		ORDER BY rel.relname, constraint_name;
	`)
	if err != nil {
		return fmt.Errorf("query constraints: %w", err)
	}
	defer rows.Close()

	captureCascade := false
	fmt.Println("Foreign keys:")
	for rows.Next() {
		var cname, table, reftable, def string
		var srcCols sql.NullString
		if err := rows.Scan(&cname, &table, &srcCols, &reftable, &def); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		fmt.Printf("- %s: %s(%s) -> %s\n    def: %s\n", cname, table, nullStringToStr(srcCols), reftable, def)
		if table == "captures" && reftable == "profiles" && strings.Contains(def, "ON DELETE CASCADE") {
			captureCascade = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows err: %w", err)
	}

	if captureCascade {
		fmt.Println("captures -> profiles cascade: OK")
	} else {
		fmt.Println("captures -> profiles cascade: MISSING (run the server once with DB_AUTO_MIGRATE=true)")
	}
	return nil
}

func nullStringToStr(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
