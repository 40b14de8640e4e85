// Package chat orchestrates one conversational turn: history load, query
// rewrite, embedding, filtered retrieval, answer generation, atomic history
// append, and asynchronous audit persistence.
//
// The serving chain is strictly sequential per request and holds no locks
// across store or model calls; concurrent requests contend only through the
// session store's atomic append.
package chat
