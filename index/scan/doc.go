// Package scan provides the exhaustive-scan vector index: every query scores
// all live vectors with the SIMD cosine kernel from github.com/viant/vec and
// keeps the top k. It is the exactness baseline other index implementations
// must agree with.
package scan
