package domain

// KeyPrefix namespaces every Redis key this service writes.
const KeyPrefix = "qialchemy:"
