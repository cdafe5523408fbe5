package domain

// KeyPrefix namespaces every Redis key the service writes.
const KeyPrefix = "facetdex:"
