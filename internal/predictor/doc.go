// Package predictor scores resources by how likely they are to lead to
// structured data, so the dispatch queue can prefer promising work.
//
// The model is an online logistic regression over hashed URI tokens.
// It starts indifferent (every score 0.5) and learns from completion
// feedback: resources that yielded new children are positive examples,
// dead ends are negative ones. Because the features are hashed into a
// fixed-size weight vector the model never grows with the crawl.
package predictor
