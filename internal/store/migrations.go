package store

const schema = `
CREATE TABLE IF NOT EXISTS query_cache (
    cache_key   TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    records     TEXT NOT NULL DEFAULT '[]',
    hits        INTEGER NOT NULL DEFAULT 0,
    fetched_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_cache_source ON query_cache(source);
CREATE INDEX IF NOT EXISTS idx_query_cache_fetched_at ON query_cache(fetched_at);
`
